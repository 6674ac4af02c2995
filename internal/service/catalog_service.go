package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"supplies-radar/internal/model"
	"supplies-radar/internal/wbapi"
)

// serviceCenterMarker flags upstream "СЦ" (sorting center) entries, which are
// kept out of the catalog.
const serviceCenterMarker = "СЦ"

// RefreshResult reports the outcome of one catalog refresh without raising
// an error for upstream rejections.
type RefreshResult struct {
	Status  int
	Message string
}

// OK reports whether the refresh went through.
func (r RefreshResult) OK() bool {
	return r.Status == http.StatusOK
}

// WarehouseDirectory is the slice of the supplies API the catalog needs.
type WarehouseDirectory interface {
	Warehouses(ctx context.Context, apiKey string) ([]wbapi.Warehouse, error)
}

// CatalogUpserter is the slice of the warehouse repository the catalog needs.
type CatalogUpserter interface {
	Upsert(ctx context.Context, id int64, name string, refreshedAt time.Time) error
}

// CredentialSource supplies any stored credential for background refreshes.
type CredentialSource interface {
	FirstWithAPIKey(ctx context.Context) (*model.User, error)
}

// CatalogService keeps the shared warehouse catalog in sync with the
// upstream directory.
type CatalogService struct {
	api        WarehouseDirectory
	warehouses CatalogUpserter
	log        zerolog.Logger
	now        func() time.Time
}

func NewCatalogService(api WarehouseDirectory, warehouses CatalogUpserter, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		api:        api,
		warehouses: warehouses,
		log:        log.With().Str("component", "catalog").Logger(),
		now:        time.Now,
	}
}

// Refresh pulls the warehouse directory with the given credential and
// upserts every entry that is not a service center. Upstream rejections are
// reported in the result, not as an error.
func (s *CatalogService) Refresh(ctx context.Context, apiKey string) (RefreshResult, error) {
	warehouses, err := s.api.Warehouses(ctx, apiKey)
	if err != nil {
		var statusErr *wbapi.StatusError
		if errors.As(err, &statusErr) {
			s.log.Warn().Int("status", statusErr.Code).Msg("directory request rejected")
			return RefreshResult{Status: statusErr.Code, Message: statusErr.Message}, nil
		}
		return RefreshResult{}, err
	}

	refreshedAt := s.now()
	upserted := 0
	for _, w := range warehouses {
		if strings.Contains(w.Name, serviceCenterMarker) {
			continue
		}
		if err := s.warehouses.Upsert(ctx, w.ID, w.Name, refreshedAt); err != nil {
			return RefreshResult{}, err
		}
		upserted++
	}

	s.log.Info().Int("total", len(warehouses)).Int("upserted", upserted).Msg("catalog refreshed")
	return RefreshResult{Status: http.StatusOK, Message: wbapi.StatusMessage(http.StatusOK)}, nil
}

// RefreshWithAnyCredential runs Refresh with any credential found in the
// store. With no registered users it is a no-op.
func (s *CatalogService) RefreshWithAnyCredential(ctx context.Context, users CredentialSource) {
	user, err := users.FirstWithAPIKey(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("lookup credential for refresh")
		return
	}
	result, err := s.Refresh(ctx, user.APIKey)
	if err != nil {
		s.log.Error().Err(err).Msg("periodic catalog refresh")
		return
	}
	if !result.OK() {
		s.log.Warn().Int("status", result.Status).Str("message", result.Message).Msg("periodic catalog refresh rejected")
	}
}
