package weather

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-efb/internal/metar"
	"github.com/yegors/co-efb/internal/observability"
	"github.com/yegors/co-efb/pkg/logger"
)

type recordingPublisher struct {
	updates chan METARUpdate
}

func (p *recordingPublisher) PublishMETAR(_ string, payload any) {
	p.updates <- payload.(METARUpdate)
}

type memHistory struct {
	mu   sync.Mutex
	raws []string
}

func (h *memHistory) SaveMETAR(_ context.Context, _, raw string, _ time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.raws = append(h.raws, raw)
	return nil
}

func (h *memHistory) saved() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.raws...)
}

func newTestService(t *testing.T, upstream *fakeAviationWeather, clock clockwork.Clock, mutate func(*Config)) *Service {
	t.Helper()
	c, cfg := newTestClient(t, upstream)
	if mutate != nil {
		mutate(&cfg)
		c.config = cfg
	}
	metrics := observability.NewMetricsForTesting()
	cache := NewCache(cfg, metrics, logger.NewNop())
	return NewService(cfg, c, cache, clock, metrics, logger.NewNop())
}

func TestService_METARs_ServesFromCache(t *testing.T) {
	upstream := newFakeAviationWeather()
	svc := newTestService(t, upstream, nil, nil)
	ctx := context.Background()

	first, err := svc.METARs(ctx, []string{"rjtt", " RJAA ", "RJTT"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "RJTT", first[0].ICAOID)
	assert.Equal(t, "RJAA", first[1].ICAOID)

	second, err := svc.METARs(ctx, []string{"RJAA", "RJTT"})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "RJAA", second[0].ICAOID)

	_, err = svc.METARs(ctx, []string{"RJTT", "RJGG"})
	require.NoError(t, err)

	assert.Equal(t, []string{"RJTT,RJAA", "RJGG"}, upstream.requestedIDs())
}

func TestService_METAR_NoData(t *testing.T) {
	svc := newTestService(t, newFakeAviationWeather(), nil, nil)

	_, err := svc.METAR(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestService_Collaborator(t *testing.T) {
	svc := newTestService(t, newFakeAviationWeather(), nil, nil)

	doc, err := svc.Collaborator(context.Background(), []string{"RJTT", "RJAA", "RJGG", "ZZZZ"})
	require.NoError(t, err)

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	assert.JSONEq(t, `{"metar":{"data":{"METAR":[
		{"station_id":"RJTT","raw_text":"`+rawRJTT+`","visibility_statute_mi":6,
		 "sky_condition":[{"sky_cover":"BKN","cloud_base_ft_agl":4500}]},
		{"station_id":"RJAA","raw_text":"`+rawRJAA+`","visibility_statute_mi":0.5,
		 "sky_condition":[{"sky_cover":"VV","cloud_base_ft_agl":200}]},
		{"station_id":"RJGG","raw_text":"RJGG 011200Z 33008KT CAVOK 20/05 Q1020","visibility_statute_mi":10}
	]}}}`, string(data))
}

func TestService_Collaborator_EmptyIsArray(t *testing.T) {
	svc := newTestService(t, newFakeAviationWeather(), nil, nil)

	doc, err := svc.Collaborator(context.Background(), []string{"ZZZZ"})
	require.NoError(t, err)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"metar":{"data":{"METAR":[]}}}`, string(data))
}

func TestService_Briefing_Cached(t *testing.T) {
	upstream := newFakeAviationWeather()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 5, 0, 0, time.UTC))
	svc := newTestService(t, upstream, clock, nil)
	ctx := context.Background()

	b := svc.Briefing(ctx, "rjtt")
	assert.Equal(t, "RJTT", b.ICAO)
	assert.Equal(t, clock.Now(), b.LastUpdated)
	hits := upstream.hits.Load()

	again := svc.Briefing(ctx, "RJTT")
	assert.Same(t, b, again)
	assert.Equal(t, hits, upstream.hits.Load())

	// the briefing also primed the METAR cache
	_, err := svc.METAR(ctx, "RJTT")
	require.NoError(t, err)
	assert.Equal(t, hits, upstream.hits.Load())
}

func TestService_RefreshWatched_PublishesOnlyChanges(t *testing.T) {
	upstream := newFakeAviationWeather()
	svc := newTestService(t, upstream, clockwork.NewFakeClock(), nil)
	pub := &recordingPublisher{updates: make(chan METARUpdate, 10)}
	hist := &memHistory{}
	svc.SetPublisher(pub)
	svc.SetHistory(hist)

	ctx := context.Background()
	svc.refreshWatched(ctx, []string{"RJTT", "RJAA"})
	svc.refreshWatched(ctx, []string{"RJTT", "RJAA"})

	assert.Len(t, pub.updates, 2)
	assert.Equal(t, []string{rawRJTT, rawRJAA}, hist.saved())

	first := <-pub.updates
	assert.Equal(t, "RJTT", first.ICAO)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), first.ObservedAt)
	report, ok := first.Decoded.(*metar.Report)
	require.True(t, ok)
	assert.Equal(t, "From 180° at 10 knots", report.Wind)
}

func TestService_Watcher(t *testing.T) {
	upstream := newFakeAviationWeather()
	clock := clockwork.NewFakeClock()
	svc := newTestService(t, upstream, clock, func(cfg *Config) {
		cfg.WatchAirports = []string{"rjtt"}
		cfg.RefreshIntervalMinutes = 5
	})
	pub := &recordingPublisher{updates: make(chan METARUpdate, 10)}
	svc.SetPublisher(pub)

	require.NoError(t, svc.Start())
	t.Cleanup(func() { _ = svc.Stop() })
	assert.True(t, svc.IsStarted())

	first := waitForUpdate(t, pub.updates)
	assert.Equal(t, rawRJTT, first.Raw)

	newer := "RJTT 011230Z 19012KT 9999 SCT030 22/17 Q1012"
	upstream.setMETAR("RJTT", `{"icaoId":"RJTT","rawOb":"`+newer+`","visib":"6+","clouds":[]}`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(5 * time.Minute)

	second := waitForUpdate(t, pub.updates)
	assert.Equal(t, newer, second.Raw)
	// no observation time upstream, so the clock supplies it
	assert.Equal(t, clock.Now(), second.ObservedAt)

	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsStarted())
}

func TestService_StartWithoutWatchList(t *testing.T) {
	svc := newTestService(t, newFakeAviationWeather(), nil, nil)
	require.NoError(t, svc.Start())
	assert.False(t, svc.IsStarted())
	require.NoError(t, svc.Stop())
}

func TestNormalizeICAOs(t *testing.T) {
	assert.Equal(t, []string{"RJTT", "KJFK"}, NormalizeICAOs([]string{" rjtt", "", "KJFK", "RJTT "}))
	assert.Empty(t, NormalizeICAOs(nil))
}

func waitForUpdate(t *testing.T, ch <-chan METARUpdate) METARUpdate {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for METAR update")
		return METARUpdate{}
	}
}
