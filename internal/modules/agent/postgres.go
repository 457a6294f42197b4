// README: Agent store backed by PostgreSQL.
package agent

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Create(ctx context.Context, a *DeliveryAgent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO delivery_agents (
			id, name, phone, vehicle_type, is_verified, is_blocked, block_reason,
			is_online, is_available, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(a.ID), a.Name, a.Phone, a.VehicleType,
		a.IsVerified, a.IsBlocked, a.BlockReason,
		a.IsOnline, a.IsAvailable, a.CreatedAt,
	)
	return err
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*DeliveryAgent, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, vehicle_type, is_verified, is_blocked, block_reason,
		       is_online, is_available, location_lat, location_lng,
		       stat_assigned, stat_accepted, stat_pickups, stat_deliveries,
		       avg_delivery_time_min, total_deliveries, total_earnings, rating, created_at
		FROM delivery_agents
		WHERE id = $1`, string(id),
	)
	var a DeliveryAgent
	var lat, lng *float64
	err := row.Scan(
		&a.ID, &a.Name, &a.Phone, &a.VehicleType, &a.IsVerified, &a.IsBlocked, &a.BlockReason,
		&a.IsOnline, &a.IsAvailable, &lat, &lng,
		&a.Stats.Assigned, &a.Stats.Accepted, &a.Stats.PickupsCompleted, &a.Stats.DeliveriesCompleted,
		&a.Stats.AvgDeliveryTimeMin, &a.Stats.TotalDeliveries, &a.Stats.TotalEarnings.Amount, &a.Stats.Rating, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		a.CurrentLocation = &types.Point{Lat: *lat, Lng: *lng}
	}
	a.Stats.TotalEarnings.Currency = "INR"
	return &a, nil
}

func (s *PgStore) SetAvailability(ctx context.Context, id types.ID, online, available bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE delivery_agents SET is_online = $1, is_available = $2 WHERE id = $3`,
		online, available, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) UpdateLocation(ctx context.Context, id types.ID, p types.Point) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE delivery_agents SET location_lat = $1, location_lng = $2 WHERE id = $3`,
		p.Lat, p.Lng, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) ApplyStats(ctx context.Context, id types.ID, d StatsDelta) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE delivery_agents
		SET stat_assigned = stat_assigned + $1,
		    stat_accepted = stat_accepted + $2,
		    stat_pickups = stat_pickups + $3
		WHERE id = $4`,
		d.Assigned, d.Accepted, d.PickupsCompleted, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) RecordDelivery(ctx context.Context, id types.ID, durationMin int, earning types.Money) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE delivery_agents
		SET avg_delivery_time_min = (avg_delivery_time_min * total_deliveries + $1) / (total_deliveries + 1),
		    total_deliveries = total_deliveries + 1,
		    stat_deliveries = stat_deliveries + 1,
		    total_earnings = total_earnings + $2
		WHERE id = $3`,
		durationMin, earning.Amount, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
