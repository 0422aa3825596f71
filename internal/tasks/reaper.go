// Package tasks hosts in-process background jobs.
package tasks

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ramswarooppatel/sharehub/internal/repository"
	"github.com/ramswarooppatel/sharehub/internal/service"
)

// sweepTimeout bounds one reaper pass.
const sweepTimeout = 2 * time.Minute

// Reaper sweeps expired rooms on a cron schedule. Correctness never
// depends on it: expiry is re-evaluated on every access, so the sweep
// only reclaims storage and cuts dead rows out of queries.
type Reaper struct {
	rooms *repository.RoomRepo
	svc   *service.RoomService
	cron  *cron.Cron
	log   *logrus.Entry
}

// NewReaper builds a reaper on the given schedule spec (cron syntax or
// descriptors like "@hourly").
func NewReaper(rooms *repository.RoomRepo, svc *service.RoomService, spec string) (*Reaper, error) {
	r := &Reaper{
		rooms: rooms,
		svc:   svc,
		cron:  cron.New(),
		log:   logrus.WithField("component", "room-reaper"),
	}
	if _, err := r.cron.AddFunc(spec, r.sweep); err != nil {
		return nil, err
	}
	return r, nil
}

// Start launches the schedule in its own goroutine.
func (r *Reaper) Start() { r.cron.Start() }

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// sweep deletes every room whose expiry has passed, going through the
// room service so blobs are cleaned and open clients see the teardown.
func (r *Reaper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	ids, err := r.rooms.ListExpired(ctx, time.Now())
	if err != nil {
		r.log.WithError(err).Error("list expired rooms")
		return
	}
	if len(ids) == 0 {
		return
	}

	reaped := 0
	for _, id := range ids {
		rm, err := r.rooms.GetByID(ctx, id)
		if err != nil {
			// Someone else may have deleted it between the list and now.
			continue
		}
		if err := r.svc.Delete(ctx, rm); err != nil {
			r.log.WithError(err).WithField("room_id", id).Warn("reap room failed")
			continue
		}
		reaped++
	}
	r.log.WithFields(logrus.Fields{"expired": len(ids), "reaped": reaped}).Info("expired rooms swept")
}
