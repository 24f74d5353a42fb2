package imports

import (
	"context"

	"github.com/sirupsen/logrus"
)

type Importer interface {
	Handle(ctx context.Context, ev FileEvent) (*Result, error)
}

// Locker serializes work on a named resource across instances. The returned context ends
// when the lease is lost.
type Locker interface {
	Acquire(ctx context.Context, name string) (leased context.Context, release func(), err error)
}

// Router sends each upload to the importer registered for its folder. Pub/Sub delivers at
// least once, so the same object version is never imported by two workers at a time.
type Router struct {
	Locker Locker
	Logger *logrus.Logger

	routes map[string]Importer
}

func NewRouter(locker Locker, logger *logrus.Logger) *Router {
	return &Router{Locker: locker, Logger: logger, routes: map[string]Importer{}}
}

func (r *Router) Register(prefix string, im Importer) {
	r.routes[prefix] = im
}

// Handles reports whether an importer listens on prefix.
func (r *Router) Handles(prefix string) bool {
	_, ok := r.routes[prefix]
	return ok
}

// Dispatch runs the importer for ev. Uploads outside every import folder are skipped,
// not rejected.
func (r *Router) Dispatch(ctx context.Context, ev FileEvent) (*Result, error) {
	im, ok := r.routes[ev.Prefix()]
	if !ok {
		return skipped("no import configured for %s", ev.Name), nil
	}
	if r.Locker != nil {
		leased, release, err := r.Locker.Acquire(ctx, "import:"+ev.Key())
		if err != nil {
			return nil, err
		}
		defer release()
		ctx = leased
	}

	res, err := im.Handle(ctx, ev)
	if err != nil {
		return nil, err
	}
	if r.Logger != nil {
		r.Logger.WithFields(logrus.Fields{
			"object":  ev.Name,
			"records": res.RecordsProcessed,
			"skipped": res.Skipped,
		}).Info("[import.dispatch] " + res.Message)
	}
	return res, nil
}
