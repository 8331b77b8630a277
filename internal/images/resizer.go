package images

import (
	"fmt"

	"github.com/disintegration/imaging"

	"ms-cursos/internal/logger"
)

// Resizer normalizes freshly attached images to a fixed target size. Jobs
// run on a background goroutine; a failed resize leaves the original file in
// place and is only logged.
type Resizer struct {
	logger *logger.Logger
	jobs   chan job
}

type job struct {
	path   string
	width  int
	height int
}

func NewResizer(log *logger.Logger) *Resizer {
	r := &Resizer{
		logger: log,
		jobs:   make(chan job, 64),
	}
	go r.run()
	return r
}

// Enqueue schedules path to be resized to width x height. Never blocks the
// calling save; if the queue is full the job is dropped with a warning.
func (r *Resizer) Enqueue(path string, width, height int) {
	if path == "" {
		return
	}
	select {
	case r.jobs <- job{path: path, width: width, height: height}:
	default:
		r.logger.Warn("IMAGES", fmt.Sprintf("Resize queue full, skipping %s", path))
	}
}

func (r *Resizer) run() {
	for j := range r.jobs {
		if err := r.resize(j); err != nil {
			r.logger.Error("IMAGES", fmt.Sprintf("Failed to resize %s: %v", j.path, err))
			continue
		}
		r.logger.Info("IMAGES", fmt.Sprintf("Resized %s to %dx%d", j.path, j.width, j.height))
	}
}

func (r *Resizer) resize(j job) error {
	src, err := imaging.Open(j.path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}

	dst := imaging.Fill(src, j.width, j.height, imaging.Center, imaging.Lanczos)

	if err := imaging.Save(dst, j.path); err != nil {
		return fmt.Errorf("save image: %w", err)
	}
	return nil
}

func (r *Resizer) Close() {
	close(r.jobs)
}
