// Package reading manages power readings: timestamped integer measurements
// kept in a single store and exchanged with callers as DTOs.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                        Service (service.go)                   │
//	│  • input validation before any storage access                 │
//	│  • one durable write per create/update/delete                 │
//	│  • change notification through an optional Observer           │
//	└───────────────┬──────────────────────────────┬───────────────┘
//	                │ mapping.go                    │
//	                ▼                               ▼
//	┌───────────────────────────┐   ┌───────────────────────────┐
//	│ SQLiteRepository          │   │ MemoryRepository          │
//	│ (power_readings table)    │   │ (process-local map)       │
//	└───────────────────────────┘   └───────────────────────────┘
//
// # Key Types
//
//   - Reading: the stored entity (ID, Value, LoggedAt)
//   - DTO: the wire representation; ID is absent until storage assigns it
//   - Filter: optional inclusive bounds on LoggedAt and Value, ANDed together
//
// # Absent Results
//
// A missing row is not an error. GetByID and Update return a nil DTO,
// DeleteByID returns false. Errors are reserved for invalid input
// (ErrInvalidArgument and the sentinels wrapping it) and storage faults,
// which are returned as the repository produced them.
//
// # Usage
//
//	svc := reading.NewService(reading.NewSQLiteRepository(db.DB))
//
//	created, err := svc.Create(ctx, []reading.DTO{{Value: 123, LoggedAt: time.Now()}})
//	if errors.Is(err, reading.ErrInvalidArgument) {
//	    // 400
//	}
//
//	list, err := svc.List(ctx, reading.Filter{MinValue: ptr(int64(100))})
package reading
