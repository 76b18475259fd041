package redisclient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Directory mirrors the lookups the scheduling core makes against doctors,
// rooms and patients.
type Directory interface {
	DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error)
	DoctorHasSpecialty(ctx context.Context, doctorID, specialtyID uuid.UUID) (bool, error)
	RoomExists(ctx context.Context, roomID uuid.UUID) (bool, error)
	PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error)
}

// CachedDirectory is a read-through cache in front of a Directory. Only
// positive answers are cached. A Redis failure falls back to the underlying
// directory.
type CachedDirectory struct {
	client *redis.Client
	next   Directory
	ttl    time.Duration
	log    *zap.Logger
}

func NewCachedDirectory(client *redis.Client, next Directory, ttl time.Duration, log *zap.Logger) *CachedDirectory {
	return &CachedDirectory{client: client, next: next, ttl: ttl, log: log}
}

func (c *CachedDirectory) DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	return c.lookup(ctx, "dir:doctor:"+doctorID.String(), func(ctx context.Context) (bool, error) {
		return c.next.DoctorExists(ctx, doctorID)
	})
}

func (c *CachedDirectory) DoctorHasSpecialty(ctx context.Context, doctorID, specialtyID uuid.UUID) (bool, error) {
	key := "dir:doctor_specialty:" + doctorID.String() + ":" + specialtyID.String()
	return c.lookup(ctx, key, func(ctx context.Context) (bool, error) {
		return c.next.DoctorHasSpecialty(ctx, doctorID, specialtyID)
	})
}

func (c *CachedDirectory) RoomExists(ctx context.Context, roomID uuid.UUID) (bool, error) {
	return c.lookup(ctx, "dir:room:"+roomID.String(), func(ctx context.Context) (bool, error) {
		return c.next.RoomExists(ctx, roomID)
	})
}

func (c *CachedDirectory) PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	return c.lookup(ctx, "dir:patient:"+patientID.String(), func(ctx context.Context) (bool, error) {
		return c.next.PatientExists(ctx, patientID)
	})
}

func (c *CachedDirectory) lookup(ctx context.Context, key string, load func(ctx context.Context) (bool, error)) (bool, error) {
	err := c.client.Get(ctx, key).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("directory cache read failed", zap.String("key", key), zap.Error(err))
	}

	ok, err := load(ctx)
	if err != nil {
		return false, err
	}

	if ok {
		if err := c.client.Set(ctx, key, "1", c.ttl).Err(); err != nil {
			c.log.Warn("directory cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return ok, nil
}
