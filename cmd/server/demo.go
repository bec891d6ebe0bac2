package main

import (
	"math"

	"github.com/stwalsh4118/cinema/internal/timeline"
	"github.com/stwalsh4118/cinema/internal/world"
)

const (
	demoLength   = 200
	demoLoopBack = 40
	demoRadius   = 4.0
)

// seedDemo registers a short recording so a fresh install has something to play
func seedDemo(lib *timeline.Library, w *world.World, d timeline.Dispatcher) error {
	actor := make([]timeline.Keyframe, 0, demoLength+1)
	camera := make([]timeline.Keyframe, 0, demoLength/10+1)

	for tick := 0; tick <= demoLength; tick++ {
		angle := 2 * math.Pi * float64(tick) / demoLength
		pose := world.Location{
			X: demoRadius * math.Cos(angle),
			Z: demoRadius * math.Sin(angle),
		}
		// face along the circle
		pose.Yaw = float32(math.Mod(float64(tick)*360/demoLength+180, 360))
		actor = append(actor, timeline.Keyframe{Tick: tick, Pose: pose})

		if tick%10 == 0 {
			eye := world.Location{X: 0, Y: 6, Z: -10}
			camera = append(camera, timeline.Keyframe{Tick: tick, Pose: eye.LookAt(pose)})
		}
	}

	return lib.Register(timeline.NewRecording("demo", demoLoopBack,
		timeline.NewActorTrack("greeter", w, actor),
		timeline.NewCameraTrack(w, d, camera),
	))
}
