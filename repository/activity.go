package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-navauth"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivityRecord is the Bun model for recorded auth and navigation activity.
type ActivityRecord struct {
	bun.BaseModel `bun:"table:navauth_activity,alias:act"`

	ID         uuid.UUID      `bun:"id,pk,nullzero,type:uuid"`
	EventType  string         `bun:"event_type,notnull"`
	UserID     string         `bun:"user_id"`
	Route      string         `bun:"route"`
	Metadata   map[string]any `bun:"metadata,type:jsonb"`
	OccurredAt time.Time      `bun:"occurred_at,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// ActivityRepository stores activity events. It implements
// navauth.ActivitySink.
type ActivityRepository struct {
	repository.Repository[*ActivityRecord]
	db *bun.DB
}

var _ navauth.ActivitySink = (*ActivityRepository)(nil)

// NewActivityRepository creates a new repository.
func NewActivityRepository(db *bun.DB) *ActivityRepository {
	repo := repository.NewRepository[*ActivityRecord](db, repository.ModelHandlers[*ActivityRecord]{
		NewRecord: func() *ActivityRecord { return &ActivityRecord{} },
		GetID: func(r *ActivityRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *ActivityRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})
	return &ActivityRepository{Repository: repo, db: db}
}

// Migrate creates the activity table and its user index.
func (r *ActivityRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.NewCreateTable().
		Model((*ActivityRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	_, err := r.db.NewCreateIndex().
		Model((*ActivityRecord)(nil)).
		Index("idx_navauth_activity_user").
		IfNotExists().
		Column("user_id", "occurred_at").
		Exec(ctx)
	return err
}

// Record implements navauth.ActivitySink.
func (r *ActivityRepository) Record(ctx context.Context, event navauth.ActivityEvent) error {
	record := &ActivityRecord{
		ID:         uuid.New(),
		EventType:  string(event.EventType),
		UserID:     event.UserID,
		Route:      event.Route,
		Metadata:   event.Metadata,
		OccurredAt: event.OccurredAt,
	}
	if record.Metadata == nil {
		record.Metadata = map[string]any{}
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}
	_, err := r.Repository.Create(ctx, record)
	return err
}

// ListByUser returns the activity of userID, oldest first.
func (r *ActivityRepository) ListByUser(ctx context.Context, userID string, criteria ...repository.SelectCriteria) ([]navauth.ActivityEvent, error) {
	var records []ActivityRecord
	q := r.db.NewSelect().Model(&records)
	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where("?TableAlias.user_id = ?", userID).
		Order("occurred_at ASC").
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return []navauth.ActivityEvent{}, nil
		}
		return nil, err
	}

	events := make([]navauth.ActivityEvent, len(records))
	for i := range records {
		events[i] = toActivityEvent(&records[i])
	}
	return events, nil
}

// CountByType returns how many events of eventType were recorded.
func (r *ActivityRepository) CountByType(ctx context.Context, eventType navauth.ActivityEventType) (int, error) {
	return r.db.NewSelect().
		Model((*ActivityRecord)(nil)).
		Where("?TableAlias.event_type = ?", string(eventType)).
		Count(ctx)
}

func toActivityEvent(m *ActivityRecord) navauth.ActivityEvent {
	return navauth.ActivityEvent{
		EventType:  navauth.ActivityEventType(m.EventType),
		UserID:     m.UserID,
		Route:      m.Route,
		Metadata:   m.Metadata,
		OccurredAt: m.OccurredAt,
	}
}
