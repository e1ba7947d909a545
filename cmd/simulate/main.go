package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/booking/internal/booking"
	"github.com/careslot/booking/internal/notify"
)

// simulate drives the reservation engine with many concurrent patients
// racing for the same slots, then checks the invariant the system exists
// for: one winner per slot, everyone else conflicted, never silence.
func main() {
	var (
		patients = flag.Int("patients", 50, "concurrent patients per slot")
		slots    = flag.Int("slots", 20, "number of contested slots")
	)
	flag.Parse()

	log.SetFlags(log.LstdFlags)
	log.Printf("simulate: %d patients racing for each of %d slots", *patients, *slots)

	gofakeit.Seed(time.Now().UnixNano())

	repo := booking.NewMemoryRepository()
	queue := notify.NewMemoryQueue()
	svc := booking.NewService(repo, queue, zerolog.Nop())

	provider := repo.AddProvider(booking.Provider{
		Name:  "Dr. " + gofakeit.Name(),
		Email: gofakeit.Email(),
		Title: "General Practice",
	})

	patientIDs := make([]uuid.UUID, *patients)
	for i := range patientIDs {
		p := repo.AddPatient(booking.Patient{
			Name:  gofakeit.Name(),
			Email: gofakeit.Email(),
		})
		patientIDs[i] = p.ID
	}

	ctx := context.Background()

	inputs := make([]booking.SlotInput, *slots)
	base := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	for i := range inputs {
		start := base.Add(time.Duration(i) * 30 * time.Minute)
		inputs[i] = booking.SlotInput{StartTime: start, EndTime: start.Add(30 * time.Minute)}
	}

	published, err := svc.PublishSlots(ctx, provider.ID, inputs)
	if err != nil {
		log.Fatalf("publish slots: %v", err)
	}

	var booked, conflicts, failures int64
	start := time.Now()

	var wg sync.WaitGroup
	for _, slot := range published {
		for _, patientID := range patientIDs {
			wg.Add(1)
			go func(slotID, patientID uuid.UUID) {
				defer wg.Done()

				_, err := svc.Book(ctx, patientID, provider.ID, slotID, "simulated")
				switch {
				case err == nil:
					atomic.AddInt64(&booked, 1)
				case errors.Is(err, booking.ErrSlotUnavailable):
					atomic.AddInt64(&conflicts, 1)
				default:
					atomic.AddInt64(&failures, 1)
				}
			}(slot.ID, patientID)
		}
	}
	wg.Wait()

	elapsed := time.Since(start)
	attempts := int64(*patients) * int64(*slots)

	fmt.Printf("\nattempts:  %d in %s\n", attempts, elapsed)
	fmt.Printf("booked:    %d\n", booked)
	fmt.Printf("conflicts: %d\n", conflicts)
	fmt.Printf("failures:  %d\n", failures)

	open, _ := svc.ListAvailableSlots(ctx, provider.ID)
	fmt.Printf("open slots remaining: %d\n", len(open))

	if booked != int64(*slots) || failures != 0 || len(open) != 0 {
		log.Fatalf("INVARIANT VIOLATED: expected exactly %d winners and no failures", *slots)
	}
	log.Println("mutual exclusion held: one winner per slot")
}
