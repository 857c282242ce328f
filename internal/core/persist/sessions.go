package persist

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// SaveJob pairs a Manager with the destination for one save session.
type SaveJob struct {
	Name    string
	Manager *Manager
	Out     io.Writer
}

// SaveAll runs the given save sessions concurrently, one goroutine per job.
// Every job must carry its own Manager over its own world: a single
// serializer session is strictly single-threaded, but distinct sessions on
// distinct instances are independent. The first failure cancels the rest.
func SaveAll(ctx context.Context, jobs []SaveJob) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := job.Manager.Save(job.Out); err != nil {
				return fmt.Errorf("save %q: %w", job.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
