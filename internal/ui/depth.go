package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/guptarohit/asciigraph"

	"github.com/queueops/jmsqctl/internal/app"
)

const (
	defaultDepthSamples  = 20
	defaultDepthInterval = 500 * time.Millisecond
	graphHeight          = 12
	graphWidth           = 70
)

// DepthChart samples a queue's current message count and renders the series
// as an ASCII chart. interval and samples fall back to defaults when zero.
func DepthChart(ctx context.Context, ops *app.App, queue string, interval time.Duration, samples int) (string, error) {
	if interval <= 0 {
		interval = defaultDepthInterval
	}
	if samples <= 0 {
		samples = defaultDepthSamples
	}

	points := make([]float64, 0, samples)
	min, max := int64(0), int64(0)
	for i := 0; i < samples; i++ {
		depth, err := ops.QueueDepth(ctx, queue)
		if err != nil {
			return "", err
		}
		points = append(points, float64(depth))
		if i == 0 || depth < min {
			min = depth
		}
		if depth > max {
			max = depth
		}
		if i == samples-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}

	graph := asciigraph.Plot(points,
		asciigraph.Height(graphHeight),
		asciigraph.Width(graphWidth),
		asciigraph.Caption(fmt.Sprintf("%s depth | ↓%d ↑%d | %s per sample",
			queue, min, max, interval)))
	return graph + "\n", nil
}
