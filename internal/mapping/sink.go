package mapping

// VisualizationSink receives every finished result. Publication is
// fire-and-forget; a sink must not block the update loop for long.
type VisualizationSink interface {
	Publish(res *Result)
}

type SinkFunc func(res *Result)

func (f SinkFunc) Publish(res *Result) { f(res) }
