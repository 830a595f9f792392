package reading

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/nerrad567/power-analytics/internal/reading"

// Observer is told about every successful write. Notifications run after
// the write has committed and cannot change its outcome.
type Observer interface {
	ReadingsCreated(ctx context.Context, created []DTO)
	ReadingUpdated(ctx context.Context, updated DTO)
	ReadingDeleted(ctx context.Context, id int64)
}

type noopObserver struct{}

func (noopObserver) ReadingsCreated(context.Context, []DTO) {}
func (noopObserver) ReadingUpdated(context.Context, DTO)    {}
func (noopObserver) ReadingDeleted(context.Context, int64)  {}

// Service implements the reading CRUD operations on top of a Repository.
//
// Validation happens before any storage access. Storage errors are returned
// as the repository produced them, with no retry.
type Service struct {
	repo     Repository
	observer Observer
	tracer   trace.Tracer
}

// NewService creates a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		observer: noopObserver{},
		tracer:   otel.Tracer(tracerName),
	}
}

// SetObserver registers the observer notified after successful writes.
// Passing nil restores the no-op observer.
func (s *Service) SetObserver(o Observer) {
	if o == nil {
		o = noopObserver{}
	}
	s.observer = o
}

// List returns every reading matching f. An empty result is not an error.
func (s *Service) List(ctx context.Context, f Filter) ([]DTO, error) {
	ctx, span := s.tracer.Start(ctx, "reading.List")
	defer span.End()

	readings, err := s.repo.Query(ctx, f)
	if err != nil {
		return nil, recordError(span, err)
	}

	span.SetAttributes(attribute.Int("reading.count", len(readings)))
	return ToDTOs(readings), nil
}

// GetByID returns the reading with id, or nil when it does not exist.
func (s *Service) GetByID(ctx context.Context, id int64) (*DTO, error) {
	ctx, span := s.tracer.Start(ctx, "reading.GetByID",
		trace.WithAttributes(attribute.Int64("reading.id", id)))
	defer span.End()

	r, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrReadingNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, recordError(span, err)
	}

	dto := ToDTO(*r)
	return &dto, nil
}

// Create stores every DTO in one atomic batch and returns them with ids.
//
// A nil slice fails with ErrNilReadings and an empty one with
// ErrEmptyReadings. Both wrap ErrInvalidArgument.
func (s *Service) Create(ctx context.Context, dtos []DTO) ([]DTO, error) {
	ctx, span := s.tracer.Start(ctx, "reading.Create")
	defer span.End()

	if dtos == nil {
		return nil, recordError(span, ErrNilReadings)
	}
	if len(dtos) == 0 {
		return nil, recordError(span, ErrEmptyReadings)
	}
	span.SetAttributes(attribute.Int("reading.count", len(dtos)))

	entities := make([]Reading, 0, len(dtos))
	for _, d := range dtos {
		entities = append(entities, ToEntity(d))
	}

	stored, err := s.repo.CreateBatch(ctx, entities)
	if err != nil {
		return nil, recordError(span, err)
	}

	created := ToDTOs(stored)
	s.observer.ReadingsCreated(ctx, created)
	return created, nil
}

// Update overwrites value and loggedAt of the reading identified by d.ID.
// It returns nil without writing when no such reading exists.
func (s *Service) Update(ctx context.Context, d DTO) (*DTO, error) {
	ctx, span := s.tracer.Start(ctx, "reading.Update")
	defer span.End()

	if d.ID == nil {
		return nil, recordError(span, ErrMissingID)
	}
	span.SetAttributes(attribute.Int64("reading.id", *d.ID))

	existing, err := s.repo.GetByID(ctx, *d.ID)
	if errors.Is(err, ErrReadingNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, recordError(span, err)
	}

	ApplyUpdate(d, existing)
	if err := s.repo.Update(ctx, existing); err != nil {
		// Deleted between the lookup and the write.
		if errors.Is(err, ErrReadingNotFound) {
			return nil, nil
		}
		return nil, recordError(span, err)
	}

	updated := ToDTO(*existing)
	s.observer.ReadingUpdated(ctx, updated)
	return &updated, nil
}

// DeleteByID removes the reading with id. It reports false, with no write,
// when the reading does not exist.
func (s *Service) DeleteByID(ctx context.Context, id int64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "reading.DeleteByID",
		trace.WithAttributes(attribute.Int64("reading.id", id)))
	defer span.End()

	err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrReadingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, recordError(span, err)
	}

	s.observer.ReadingDeleted(ctx, id)
	return true, nil
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
