// Package mapping serialises asynchronous map build requests onto the
// simulation update loop.
//
// Message goroutines call Dispatcher.Submit, which only enqueues. The
// simulation calls Dispatcher.OnUpdate once per physics step; that call is
// the single consumer of the queue and the only place world geometry is
// read. At most one request is built per update, in arrival order, and a
// build always runs to completion once started.
//
// Results reach three places in order: Latest (successful builds only), the
// requester's Ticket, and the optional VisualizationSink.
package mapping
