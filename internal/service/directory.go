package service

import (
	"context"
	"time"

	"github.com/shototoy/qr-attendance-api/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const displayNameTTL = 12 * time.Hour

// StaffDirectory resolves display names for responses and events.
// Lookups are informational: a failure yields an empty name, never an error.
type StaffDirectory interface {
	DisplayName(ctx context.Context, id uuid.UUID) string
	Invalidate(ctx context.Context, id uuid.UUID)
}

type staffDirectory struct {
	repo repository.StaffRepository
	rdb  *redis.Client
}

// NewStaffDirectory reads names through a redis cache. rdb may be nil, in
// which case every lookup goes to the repository.
func NewStaffDirectory(repo repository.StaffRepository, rdb *redis.Client) StaffDirectory {
	return &staffDirectory{repo: repo, rdb: rdb}
}

func displayNameKey(id uuid.UUID) string { return "staff:name:" + id.String() }

func (d *staffDirectory) DisplayName(ctx context.Context, id uuid.UUID) string {
	if d.rdb != nil {
		if name, err := d.rdb.Get(ctx, displayNameKey(id)).Result(); err == nil {
			return name
		}
	}

	staff, err := d.repo.FindByID(ctx, id)
	if err != nil {
		log.Debug().Err(err).Str("staff_id", id.String()).Msg("directory: name lookup failed")
		return ""
	}

	if d.rdb != nil {
		// best effort
		_ = d.rdb.Set(ctx, displayNameKey(id), staff.Name, displayNameTTL).Err()
	}
	return staff.Name
}

func (d *staffDirectory) Invalidate(ctx context.Context, id uuid.UUID) {
	if d.rdb == nil {
		return
	}
	if err := d.rdb.Del(ctx, displayNameKey(id)).Err(); err != nil {
		log.Warn().Err(err).Str("staff_id", id.String()).Msg("directory: cache invalidation failed")
	}
}
