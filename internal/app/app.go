package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/joho/godotenv"

	"net/http"

	"inboxd/internal/autoreply"
	"inboxd/pkg/config"
	"inboxd/pkg/dispatch"
	"inboxd/pkg/models"
	"inboxd/pkg/shutdown"
	"inboxd/pkg/store"
	"inboxd/pkg/strand"
	"inboxd/pkg/telemetry"
	"inboxd/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	engine     *strand.Engine
	dispatcher *dispatch.Dispatcher
	responder  *dispatch.Responder

	stopWorkers   chan struct{}
	cancelAutoRep context.CancelFunc

	srv *http.Server
}

// New initializes resources that do not require a running context (DB,
// validation rules, runtime keys, the dispatch pipeline). It does not start
// the strand workers or the HTTP server; call Run to start those and block
// until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	// runtime keys
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	// validation rules
	initValidation(eff)

	// telemetry tunables
	if eff.Config.Telemetry.SampleRate > 0 {
		telemetry.SetSampleRate(eff.Config.Telemetry.SampleRate)
	}
	if d := eff.Config.Telemetry.SlowThreshold.Duration(); d > 0 {
		telemetry.SetSlowThreshold(d)
	}

	// open store
	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	a := &App{eff: eff, version: version, commit: commit, buildDate: buildDate}
	a.initDispatch()
	return a, nil
}

// initDispatch builds the strand engine and the dispatch pipeline over it and
// hooks the out-of-office responder onto persisted sends.
func (a *App) initDispatch() {
	q := a.eff.Config.Dispatch.Queue
	if n := int(q.MaxPooledBufferBytes.Int64()); n > 0 {
		strand.SetMaxPooledBuffer(n)
	}
	a.engine = strand.NewEngine(q.Capacity)
	strand.SetDefaultEngine(a.engine)

	d := dispatch.New(a.engine, a.eff.Config.Dispatch.ImmediateLimit(), a.eff.Config.Dispatch.ParticipantCap())
	resp := dispatch.NewResponder(d)
	d.AfterPersist = func(author string, recipients []models.User, ts int64) {
		resp.Respond(author, recipients, ts)
	}
	a.dispatcher = d
	a.responder = resp

	// crash dumps carry a queue snapshot
	shutdown.SetDiagnostics(func() map[string]string {
		return map[string]string{
			"queue_len":      strconv.Itoa(a.engine.Len()),
			"queue_cap":      strconv.Itoa(a.engine.Cap()),
			"active_strands": strconv.Itoa(a.engine.ActiveStrands()),
			"dropped_tasks":  strconv.FormatUint(a.engine.Dropped(), 10),
		}
	})
}

// Run starts the strand workers, the auto-reply scheduler, and the HTTP
// server, and blocks until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.startWorkers()

	cancel, err := autoreply.Start(ctx, a.eff, a.responder)
	if err != nil {
		return err
	}
	a.cancelAutoRep = cancel
	autoreply.SetEffectiveConfig(a.eff, a.responder)

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.stopBackground()
		return nil
	case err := <-errCh:
		a.stopBackground()
		return err
	}
}

// startWorkers launches the strand worker pool that drains deferred sends.
func (a *App) startWorkers() {
	workers := a.eff.Config.Dispatch.Queue.Workers
	if workers <= 0 {
		workers = 4
	}
	a.stopWorkers = make(chan struct{})
	for i := 0; i < workers; i++ {
		go a.engine.RunWorker(a.stopWorkers, a.dispatcher.HandleTask)
	}
}

// stopBackground stops the scheduler and worker pool and drains the queue.
func (a *App) stopBackground() {
	if a.cancelAutoRep != nil {
		a.cancelAutoRep()
	}
	if a.stopWorkers != nil {
		close(a.stopWorkers)
	}
	a.engine.CloseAndDrain()
}

// initValidation builds validation rules from config and sets them globally.
func initValidation(eff config.EffectiveConfigResult) {
	vr := validation.Rules{Types: map[string]string{}, MaxLen: map[string]int{}, Enums: map[string][]string{}}
	vr.Required = append(vr.Required, eff.Config.Validation.Required...)
	for _, t := range eff.Config.Validation.Types {
		vr.Types[t.Path] = t.Type
	}
	for _, ml := range eff.Config.Validation.MaxLen {
		vr.MaxLen[ml.Path] = ml.Max
	}
	for _, e := range eff.Config.Validation.Enums {
		vr.Enums[e.Path] = append([]string{}, e.Values...)
	}
	for _, wt := range eff.Config.Validation.WhenThen {
		vr.WhenThen = append(vr.WhenThen, validation.WhenThenRule{WhenPath: wt.When.Path, Equals: wt.When.Equals, ThenReq: append([]string{}, wt.Then.Required...)})
	}
	validation.SetRules(vr)
}
