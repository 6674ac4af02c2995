package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"supplies-radar/internal/model"
	"supplies-radar/internal/wbapi"
)

// UserSource lists all users with their polling settings.
type UserSource interface {
	ListAll(ctx context.Context) ([]model.User, error)
}

// SubscriptionSource resolves a user's tracked warehouse ids.
type SubscriptionSource interface {
	ListWarehouseIDs(ctx context.Context, userID uint) ([]int64, error)
}

// CoefficientFetcher fetches acceptance coefficients for a warehouse set.
type CoefficientFetcher interface {
	Coefficients(ctx context.Context, apiKey string, warehouseIDs []int64) ([]wbapi.Coefficient, error)
}

// Notifier delivers qualifying coefficients to the user's chat.
type Notifier interface {
	NotifyCoefficients(ctx context.Context, user model.User, coefficients []wbapi.Coefficient) error
}

// Poller runs the periodic per-user coefficient checks. Every tick it loads
// the current user list, picks the users whose frequency divides the tick
// counter, and fans their checks out through a bounded worker budget so one
// slow or failing user cannot stall the rest.
type Poller struct {
	users         UserSource
	subscriptions SubscriptionSource
	api           CoefficientFetcher
	notifier      Notifier
	log           zerolog.Logger

	concurrency  int
	checkTimeout time.Duration
	tick         atomic.Int64
}

func NewPoller(users UserSource, subscriptions SubscriptionSource, api CoefficientFetcher, notifier Notifier, concurrency int, checkTimeout time.Duration, log zerolog.Logger) *Poller {
	if concurrency < 1 {
		concurrency = 1
	}
	if checkTimeout <= 0 {
		checkTimeout = 30 * time.Second
	}
	return &Poller{
		users:         users,
		subscriptions: subscriptions,
		api:           api,
		notifier:      notifier,
		log:           log.With().Str("component", "poller").Logger(),
		concurrency:   concurrency,
		checkTimeout:  checkTimeout,
	}
}

// Due reports whether a user with the given polling frequency is scheduled
// at tick t. A non-positive frequency never comes due.
func Due(t int64, frequency int) bool {
	if frequency < 1 {
		return false
	}
	return t%int64(frequency) == 0
}

// Tick runs one scheduler iteration and blocks until every check started
// this tick has finished. Per-user failures are logged and swallowed.
func (p *Poller) Tick(ctx context.Context) {
	t := p.tick.Add(1) - 1

	users, err := p.users.ListAll(ctx)
	if err != nil {
		p.log.Error().Err(err).Int64("tick", t).Msg("load users")
		return
	}

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	checked := 0
	for _, user := range users {
		if !Due(t, user.PollingFrequency) {
			continue
		}
		checked++
		wg.Add(1)
		go func(user model.User) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			checkCtx, cancel := context.WithTimeout(ctx, p.checkTimeout)
			defer cancel()
			if err := p.checkUser(checkCtx, user); err != nil {
				p.log.Warn().Err(err).Int64("tick", t).Uint("user", user.ID).Msg("check failed")
			}
		}(user)
	}
	wg.Wait()

	if checked > 0 {
		p.log.Debug().Int64("tick", t).Int("due", checked).Msg("tick done")
	}
}

func (p *Poller) checkUser(ctx context.Context, user model.User) error {
	warehouseIDs, err := p.subscriptions.ListWarehouseIDs(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(warehouseIDs) == 0 {
		return nil
	}

	coefficients, err := p.api.Coefficients(ctx, user.APIKey, warehouseIDs)
	if err != nil {
		return err
	}

	good := Qualifying(coefficients, user.NotificationThreshold)
	if len(good) == 0 {
		return nil
	}
	return p.notifier.NotifyCoefficients(ctx, user, good)
}
