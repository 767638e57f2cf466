// Package usecase はライブキャッシュと外部プロバイダーから日次終値の時系列を
// 永続化する二段階の同期処理を実装します。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"price_engine/internal/feature/prices/domain"
	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/fetcher"
	"price_engine/internal/platform/livecache"
	"price_engine/internal/platform/marketcal"
	"price_engine/internal/shared/ratelimiter"
)

// TrackedSymbolStore は同期対象シンボルの読み取りと last_update の更新を抽象化します。
// インターフェースは利用者（usecase）側で定義します。
type TrackedSymbolStore interface {
	List(ctx context.Context) ([]entity.TrackedSymbol, error)
	SetLastUpdate(ctx context.Context, symbol string, at time.Time) error
	SetLastUpdateMany(ctx context.Context, symbols []string, at time.Time) error
}

// HistoryStore は時系列テーブルへの書き込みを抽象化します。
type HistoryStore interface {
	CountBatch(ctx context.Context, symbols []string) (map[string]int64, error)
	ExistingKeys(ctx context.Context, points []entity.HistoricalPoint) (map[string]struct{}, error)
	InsertBatch(ctx context.Context, points []entity.HistoricalPoint) (int, error)
}

// FetcherSource は市場ごとのフェッチャーを返します。
type FetcherSource interface {
	ForMarket(market entity.Market) (fetcher.PriceFetcher, error)
}

// Config は同期処理の閾値です。
type Config struct {
	SyncInterval     time.Duration // last_update がこの範囲内なら Stage 1 の対象
	BackfillMinRows  int64         // これ未満の行数は履歴なしとみなす
	BackfillLookback time.Duration // 全量バックフィルの期間
	FetchTimeout     time.Duration
	Concurrency      int
}

// StageResult は各ステージの成功数とエラー数です。
type StageResult struct {
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`
}

// RunSummary は一回の同期実行の結果です。
type RunSummary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Stage1     StageResult   `json:"stage1"`
	Stage2     StageResult   `json:"stage2"`
	RowsStored int           `json:"rows_stored"`
}

// HistoricalSyncService はStage 1（キャッシュ転送）とStage 2（自己修復バックフィル）を実行します。
type HistoricalSyncService struct {
	tracked  TrackedSymbolStore
	history  HistoryStore
	cache    *livecache.Cache
	fetchers FetcherSource
	limiter  ratelimiter.RateLimiterInterface
	cfg      Config
	now      func() time.Time

	running sync.Mutex
}

// NewHistoricalSyncService は HistoricalSyncService を生成します。limiter は nil でも構いません。
func NewHistoricalSyncService(
	tracked TrackedSymbolStore,
	history HistoryStore,
	cache *livecache.Cache,
	fetchers FetcherSource,
	limiter ratelimiter.RateLimiterInterface,
	cfg Config,
) *HistoricalSyncService {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 3 * time.Hour
	}
	if cfg.BackfillMinRows <= 0 {
		cfg.BackfillMinRows = 50
	}
	if cfg.BackfillLookback <= 0 {
		cfg.BackfillLookback = 365 * 24 * time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	return &HistoricalSyncService{
		tracked:  tracked,
		history:  history,
		cache:    cache,
		fetchers: fetchers,
		limiter:  limiter,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run は両ステージを順に実行します。追跡シンボルの一覧取得に失敗した場合のみエラーを返します。
// 別の実行が進行中なら待たずに domain.ErrJobInProgress を返します。
func (s *HistoricalSyncService) Run(ctx context.Context) (*RunSummary, error) {
	if !s.running.TryLock() {
		return nil, domain.ErrJobInProgress
	}
	defer s.running.Unlock()

	started := s.now()
	sum := &RunSummary{RunID: uuid.NewString(), StartedAt: started.UTC()}
	log := slog.With("run_id", sum.RunID)

	symbols, err := s.tracked.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked symbols: %w", err)
	}
	fresh, stale := s.partition(symbols, started)

	r1, n1, err := s.transfer(ctx, fresh, started)
	if err != nil {
		return nil, err
	}
	sum.Stage1 = r1

	candidates, err := s.candidates(ctx, fresh, stale)
	if err != nil {
		return nil, err
	}
	r2, n2 := s.backfill(ctx, candidates, started)
	sum.Stage2 = r2

	sum.RowsStored = n1 + n2
	sum.Duration = s.now().Sub(started)
	log.Info("historical sync finished",
		"stage1_success", r1.SuccessCount,
		"stage1_errors", r1.ErrorCount,
		"stage2_success", r2.SuccessCount,
		"stage2_errors", r2.ErrorCount,
		"rows", sum.RowsStored,
		"duration", sum.Duration,
	)
	return sum, nil
}

// believedFresh は last_update が同期間隔内か、直近の引けスロット以降であれば真を返します。
func (s *HistoricalSyncService) believedFresh(ts entity.TrackedSymbol, now time.Time) bool {
	if ts.LastUpdate == nil {
		return false
	}
	if now.Sub(*ts.LastUpdate) <= s.cfg.SyncInterval {
		return true
	}
	return !ts.LastUpdate.Before(marketcal.CloseSlot(ts.Market, now))
}

func (s *HistoricalSyncService) partition(symbols []entity.TrackedSymbol, now time.Time) (fresh, stale []entity.TrackedSymbol) {
	for _, ts := range symbols {
		if s.believedFresh(ts, now) {
			fresh = append(fresh, ts)
		} else {
			stale = append(stale, ts)
		}
	}
	return fresh, stale
}

// RunStage1 は Stage 1 のみを実行します。
func (s *HistoricalSyncService) RunStage1(ctx context.Context) (StageResult, error) {
	if !s.running.TryLock() {
		return StageResult{}, domain.ErrJobInProgress
	}
	defer s.running.Unlock()

	now := s.now()
	symbols, err := s.tracked.List(ctx)
	if err != nil {
		return StageResult{}, fmt.Errorf("list tracked symbols: %w", err)
	}
	fresh, _ := s.partition(symbols, now)
	r, _, err := s.transfer(ctx, fresh, now)
	return r, err
}

// transfer はキャッシュ上の最新価格を正規化した引けスロットの時刻で時系列に書き込みます。
// 既存の (symbol, timestamp) はスキップし、挿入は一括で行います。
// last_update には実行時刻ではなく挿入したスロットの時刻を記録します。
func (s *HistoricalSyncService) transfer(ctx context.Context, symbols []entity.TrackedSymbol, now time.Time) (StageResult, int, error) {
	var res StageResult
	points := make([]entity.HistoricalPoint, 0, len(symbols))
	for _, ts := range symbols {
		e, ok := s.cache.Get(ts.Symbol)
		if !ok || e.Price <= 0 {
			continue
		}
		cal := marketcal.ForMarket(ts.Market)
		slot := cal.CloseSlot(now)
		// 前のスロット以前に取得した価格は今回のスロットの終値ではない
		if e.LastUpdate.Before(cal.CloseSlot(slot.Add(-time.Second))) {
			slog.Debug("cache entry too old for close slot", "symbol", ts.Symbol, "last_update", e.LastUpdate, "slot", slot)
			continue
		}
		points = append(points, entity.HistoricalPoint{Symbol: ts.Symbol, Timestamp: slot.UTC(), Close: e.Price})
	}
	if len(points) == 0 {
		return res, 0, nil
	}

	existing, err := s.history.ExistingKeys(ctx, points)
	if err != nil {
		return res, 0, fmt.Errorf("stage 1: check existing points: %w", err)
	}
	newPoints := make([]entity.HistoricalPoint, 0, len(points))
	for _, p := range points {
		if _, dup := existing[p.Key()]; !dup {
			newPoints = append(newPoints, p)
		}
	}

	n := 0
	if len(newPoints) > 0 {
		n, err = s.history.InsertBatch(ctx, newPoints)
		if err != nil {
			slog.Warn("stage 1 batch insert failed", "points", len(newPoints), "error", err)
			res.ErrorCount = len(newPoints)
			return res, 0, nil
		}
	}

	bySlot := make(map[time.Time][]string)
	for _, p := range newPoints {
		bySlot[p.Timestamp] = append(bySlot[p.Timestamp], p.Symbol)
	}
	for slot, syms := range bySlot {
		if err := s.tracked.SetLastUpdateMany(ctx, syms, slot); err != nil {
			return res, n, fmt.Errorf("stage 1: update last_update: %w", err)
		}
	}
	res.SuccessCount = len(newPoints)
	slog.Info("stage 1 transfer done", "candidates", len(points), "inserted", n, "skipped", len(points)-len(newPoints))
	return res, n, nil
}

// candidates は Stage 2 の対象を返します。新鮮とみなされていても行数が0のシンボルを含みます。
func (s *HistoricalSyncService) candidates(ctx context.Context, fresh, stale []entity.TrackedSymbol) ([]backfillTarget, error) {
	all := make([]entity.TrackedSymbol, 0, len(fresh)+len(stale))
	all = append(all, stale...)
	all = append(all, fresh...)
	if len(all) == 0 {
		return nil, nil
	}
	names := make([]string, len(all))
	for i, ts := range all {
		names[i] = ts.Symbol
	}
	counts, err := s.history.CountBatch(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("stage 2: count history: %w", err)
	}

	out := make([]backfillTarget, 0, len(stale))
	for i, ts := range all {
		count := counts[ts.Symbol]
		if i >= len(stale) && count > 0 {
			continue
		}
		out = append(out, backfillTarget{symbol: ts, count: count})
	}
	return out, nil
}

type backfillTarget struct {
	symbol entity.TrackedSymbol
	count  int64
}

// BackfillMode は Stage 2 の取得範囲の種類です。
type BackfillMode int

const (
	// BackfillFull は設定された期間全体を再取得します。
	BackfillFull BackfillMode = iota
	// BackfillGap は last_update を含む引けスロットの次の営業日以降のみを取得します。
	BackfillGap
)

func (m BackfillMode) String() string {
	if m == BackfillGap {
		return "gap"
	}
	return "full"
}

// ClassifyBackfill は既存行数と last_update から取得範囲を決めます。
func ClassifyBackfill(count, minRows int64, lastUpdate *time.Time) BackfillMode {
	if count < minRows || lastUpdate == nil {
		return BackfillFull
	}
	return BackfillGap
}

// backfillWindow は取得開始日時と、その範囲で最初に確定する引けスロットを返します。
func (s *HistoricalSyncService) backfillWindow(t backfillTarget, now time.Time) (BackfillMode, time.Time, time.Time) {
	mode := ClassifyBackfill(t.count, s.cfg.BackfillMinRows, t.symbol.LastUpdate)
	if mode == BackfillFull {
		start := now.Add(-s.cfg.BackfillLookback)
		return mode, start, start
	}
	cal := marketcal.ForMarket(t.symbol.Market)
	lu := *t.symbol.LastUpdate
	return mode, cal.NextSessionStart(lu), cal.NextClose(cal.CloseSlot(lu))
}

// errUpToDate は取得すべき引けスロットがまだ確定していないことを示します。
var errUpToDate = errors.New("history up to date")

// backfill は候補ごとに履歴を取得して不足分を挿入します。
// シンボル単位の失敗は数えるだけで処理は継続し、設定エラーの市場は残りをスキップします。
func (s *HistoricalSyncService) backfill(ctx context.Context, targets []backfillTarget, now time.Time) (StageResult, int) {
	var (
		res      StageResult
		rows     int
		upToDate int
		mu       sync.Mutex
		disabled = map[entity.Market]bool{}
		g        errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)

	for _, t := range targets {
		g.Go(func() error {
			mu.Lock()
			skip := disabled[t.symbol.Market]
			mu.Unlock()
			if skip {
				mu.Lock()
				res.ErrorCount++
				mu.Unlock()
				return nil
			}

			n, err := s.backfillOne(ctx, t, now)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.SuccessCount++
				rows += n
			case errors.Is(err, errUpToDate):
				res.SuccessCount++
				upToDate++
			case domain.IsNoData(err):
				slog.Info("no history available", "symbol", t.symbol.Symbol)
				res.SuccessCount++
			case domain.IsConfiguration(err):
				if !disabled[t.symbol.Market] {
					slog.Error("provider misconfigured, skipping market backfill", "market", t.symbol.Market, "error", err)
				}
				disabled[t.symbol.Market] = true
				res.ErrorCount++
			default:
				slog.Warn("backfill failed", "symbol", t.symbol.Symbol, "error", err)
				res.ErrorCount++
			}
			return nil
		})
	}
	_ = g.Wait()
	slog.Info("stage 2 backfill done", "candidates", len(targets), "success", res.SuccessCount, "up_to_date", upToDate, "errors", res.ErrorCount, "rows", rows)
	return res, rows
}

// RunStage2 は Stage 2 のみを実行します。
func (s *HistoricalSyncService) RunStage2(ctx context.Context) (StageResult, error) {
	if !s.running.TryLock() {
		return StageResult{}, domain.ErrJobInProgress
	}
	defer s.running.Unlock()

	now := s.now()
	symbols, err := s.tracked.List(ctx)
	if err != nil {
		return StageResult{}, fmt.Errorf("list tracked symbols: %w", err)
	}
	fresh, stale := s.partition(symbols, now)
	targets, err := s.candidates(ctx, fresh, stale)
	if err != nil {
		return StageResult{}, err
	}
	r, _ := s.backfill(ctx, targets, now)
	return r, nil
}

func (s *HistoricalSyncService) backfillOne(ctx context.Context, t backfillTarget, now time.Time) (int, error) {
	sym := t.symbol.Symbol
	mode, start, firstSlot := s.backfillWindow(t, now)
	if !start.Before(now) || firstSlot.After(now) {
		slog.Debug("backfill skipped, no close slot to fetch", "symbol", sym, "mode", mode, "start", start, "first_slot", firstSlot)
		return 0, errUpToDate
	}

	f, err := s.fetchers.ForMarket(t.symbol.Market)
	if err != nil {
		return 0, err
	}
	if s.limiter != nil {
		if err := s.limiter.WaitIfNeeded(ctx); err != nil {
			return 0, err
		}
	}
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	raw, err := f.FetchHistorical(fctx, sym, start, now)
	if err != nil {
		return 0, err
	}

	cal := marketcal.ForMarket(t.symbol.Market)
	seen := make(map[string]struct{}, len(raw))
	points := make([]entity.HistoricalPoint, 0, len(raw))
	for _, p := range raw {
		if p.Close <= 0 {
			continue
		}
		ts := cal.NormalizeDay(p.Timestamp)
		if ts.After(now) {
			continue
		}
		np := entity.HistoricalPoint{Symbol: sym, Timestamp: ts, Close: p.Close}
		if _, dup := seen[np.Key()]; dup {
			continue
		}
		seen[np.Key()] = struct{}{}
		points = append(points, np)
	}
	if len(points) == 0 {
		return 0, domain.NewProviderError("backfill", sym, domain.ErrNoData, nil)
	}

	existing, err := s.history.ExistingKeys(ctx, points)
	if err != nil {
		return 0, fmt.Errorf("check existing points: %w", err)
	}
	var latest time.Time
	fresh := make([]entity.HistoricalPoint, 0, len(points))
	for _, p := range points {
		if p.Timestamp.After(latest) {
			latest = p.Timestamp
		}
		if _, dup := existing[p.Key()]; !dup {
			fresh = append(fresh, p)
		}
	}

	n := 0
	if len(fresh) > 0 {
		if n, err = s.history.InsertBatch(ctx, fresh); err != nil {
			return 0, fmt.Errorf("insert history: %w", err)
		}
	}
	if err := s.tracked.SetLastUpdate(ctx, sym, latest); err != nil {
		return n, fmt.Errorf("update last_update: %w", err)
	}
	slog.Debug("backfilled symbol", "symbol", sym, "mode", mode, "fetched", len(raw), "inserted", n, "last_update", latest)
	return n, nil
}
