package mapping_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/tethermap/internal/mapping"
	"github.com/san-kum/tethermap/internal/probe"
	"github.com/san-kum/tethermap/internal/sdf"
	"github.com/san-kum/tethermap/internal/voxel"
	"github.com/san-kum/tethermap/internal/world"
	"gonum.org/v1/gonum/spatial/r3"
)

func cube(n int, res float64) voxel.Region {
	return voxel.Region{Extents: [3]int{n, n, n}, Resolution: res}
}

func testScene() *world.Scene {
	bounds := world.Box{Min: r3.Vec{X: -10, Y: -10, Z: -10}, Max: r3.Vec{X: 10, Y: 10, Z: 10}}
	return world.NewScene(bounds, world.NewBox(r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{X: 1, Y: 1, Z: 1}))
}

// hookedWorld runs onQuery before the first geometry query of a build.
type hookedWorld struct {
	probe.WorldQuery
	once    sync.Once
	onQuery func()
}

func (h *hookedWorld) Contains(p r3.Vec) (bool, error) {
	h.once.Do(h.onQuery)
	return h.WorldQuery.Contains(p)
}

type panicWorld struct{}

func (panicWorld) Contains(r3.Vec) (bool, error)             { panic("engine detached") }
func (panicWorld) Raycast(r3.Vec, r3.Vec) (probe.Hit, error) { return probe.Hit{}, nil }

func submit(d *mapping.Dispatcher, req mapping.Request) *mapping.Ticket {
	GinkgoHelper()
	t, err := d.Submit(context.Background(), req)
	Expect(err).NotTo(HaveOccurred())
	return t
}

var _ = Describe("Dispatcher", func() {
	var (
		d     *mapping.Dispatcher
		scene *world.Scene
		sunk  []string
	)

	BeforeEach(func() {
		sunk = nil
		scene = testScene()
		d = mapping.New(
			mapping.WithQueueSize(8),
			mapping.WithSink(mapping.SinkFunc(func(res *mapping.Result) {
				sunk = append(sunk, res.RequestID)
			})),
		)
	})

	AfterEach(func() {
		d.Close()
	})

	It("starts idle with nothing published", func() {
		Expect(d.State()).To(Equal(mapping.Idle))
		Expect(d.Latest()).To(BeNil())
		Expect(d.OnUpdate(scene, true)).To(BeNil())
	})

	It("builds one request per update and publishes it", func() {
		t := submit(d, mapping.Request{ID: "a", Region: cube(4, 1)})
		Expect(d.Pending()).To(Equal(1))

		res := d.OnUpdate(scene, true)
		Expect(res).NotTo(BeNil())
		Expect(res.Status).To(Equal(mapping.Success))
		Expect(res.SDF).NotTo(BeNil())
		Expect(res.Gradient).NotTo(BeNil())
		Expect(voxel.Complete(res.Occupancy)).To(BeTrue())
		Expect(d.State()).To(Equal(mapping.Ready))

		var got mapping.Result
		Eventually(t.Done()).Should(Receive(&got))
		Expect(got.RequestID).To(Equal("a"))
		Expect(d.Latest().RequestID).To(Equal("a"))
		Expect(sunk).To(Equal([]string{"a"}))

		Expect(d.OnUpdate(scene, true)).To(BeNil())
		Expect(d.State()).To(Equal(mapping.Idle))
	})

	It("assigns an identifier when none is given", func() {
		t := submit(d, mapping.Request{Region: cube(2, 1)})
		Expect(t.ID).NotTo(BeEmpty())
		Expect(d.OnUpdate(scene, true).RequestID).To(Equal(t.ID))
	})

	It("processes requests in arrival order", func() {
		ids := []string{"first", "second", "third"}
		for _, id := range ids {
			submit(d, mapping.Request{ID: id, Region: cube(2, 1)})
		}
		var built []string
		for range ids {
			built = append(built, d.OnUpdate(scene, true).RequestID)
		}
		Expect(built).To(Equal(ids))
		Expect(d.Pending()).To(BeZero())
	})

	It("does not start a request submitted during a build until the build is delivered", func() {
		var late *mapping.Ticket
		w := &hookedWorld{WorldQuery: scene}
		w.onQuery = func() {
			late = submit(d, mapping.Request{ID: "late", Region: cube(2, 1)})
		}
		first := submit(d, mapping.Request{ID: "early", Region: cube(3, 1)})

		res := d.OnUpdate(w, true)
		Expect(res.RequestID).To(Equal("early"))
		Expect(first.Done()).To(Receive())
		Expect(late).NotTo(BeNil())
		Expect(late.Done()).NotTo(Receive())
		Expect(d.Pending()).To(Equal(1))

		Expect(d.OnUpdate(scene, true).RequestID).To(Equal("late"))
		Expect(late.Done()).To(Receive())
	})

	It("rejects a zero resolution without touching the published map", func() {
		submit(d, mapping.Request{ID: "good", Region: cube(3, 1)})
		d.OnUpdate(scene, true)
		before := d.Latest()

		t := submit(d, mapping.Request{ID: "bad", Region: cube(3, 0)})
		var res mapping.Result
		Expect(t.Done()).To(Receive(&res))
		Expect(res.Status).To(Equal(mapping.Failure))
		Expect(res.Err).To(MatchError(voxel.ErrInvalidRegion))
		Expect(res.SDF).To(BeNil())

		Expect(d.Pending()).To(BeZero())
		Expect(d.Latest()).To(BeIdenticalTo(before))
	})

	It("defers requests until the world is ready", func() {
		t := submit(d, mapping.Request{ID: "wait", Region: cube(2, 1)})
		for i := 0; i < 3; i++ {
			Expect(d.OnUpdate(scene, false)).To(BeNil())
			Expect(d.OnUpdate(nil, true)).To(BeNil())
		}
		Expect(d.Pending()).To(Equal(1))
		Expect(t.Done()).NotTo(Receive())

		Expect(d.OnUpdate(scene, true).RequestID).To(Equal("wait"))
	})

	It("survives a panicking world and marks its cells out of bounds", func() {
		t := submit(d, mapping.Request{ID: "boom", Region: cube(2, 1)})
		res := d.OnUpdate(panicWorld{}, true)
		Expect(res.Status).To(Equal(mapping.Success))
		Expect(res.Stats.QueryErrors).To(Equal(8))
		Expect(res.Stats.OutOfBounds).To(Equal(8))
		Expect(t.Done()).To(Receive())
		Expect(sunk).To(Equal([]string{"boom"}))

		submit(d, mapping.Request{ID: "after", Region: cube(2, 1)})
		res = d.OnUpdate(scene, true)
		Expect(res.Status).To(Equal(mapping.Success))
		Expect(res.Stats.QueryErrors).To(BeZero())
	})

	It("rejects a region over the cell limit without building it", func() {
		small := mapping.New(mapping.WithMaxCells(27))
		defer small.Close()

		ok := submit(small, mapping.Request{ID: "fits", Region: cube(3, 1)})
		Expect(ok.Done()).NotTo(Receive())

		for _, region := range []voxel.Region{
			cube(4, 1),
			{Extents: [3]int{1 << 22, 1 << 21, 1 << 21}, Resolution: 1},
		} {
			t := submit(small, mapping.Request{ID: "huge", Region: region})
			var res mapping.Result
			Expect(t.Done()).To(Receive(&res))
			Expect(res.Status).To(Equal(mapping.Failure))
			Expect(res.Err).To(MatchError(voxel.ErrInvalidRegion))
		}
		Expect(small.Pending()).To(Equal(1))
		Expect(small.OnUpdate(scene, true).RequestID).To(Equal("fits"))
	})

	It("marks cells out of bounds when geometry queries fail", func() {
		faulty := &world.FaultyWorld{
			WorldQuery: scene,
			Region:     world.Box{Min: r3.Vec{X: 2, Y: -1, Z: -1}, Max: r3.Vec{X: 5, Y: 5, Z: 5}},
		}
		submit(d, mapping.Request{ID: "partial", Region: cube(4, 1)})
		res := d.OnUpdate(faulty, true)
		Expect(res.Status).To(Equal(mapping.Success))
		Expect(res.Stats.QueryErrors).To(BeNumerically(">", 0))
		Expect(res.Occupancy.At(voxel.Index{I: 3, J: 0, K: 0})).To(Equal(voxel.OutOfBounds))
		Expect(sdf.IsSentinel(res.SDF.At(voxel.Index{I: 3, J: 0, K: 0}))).To(BeTrue())
	})

	It("blocks on a full queue until the context ends", func() {
		small := mapping.New(mapping.WithQueueSize(1))
		defer small.Close()
		submit(small, mapping.Request{Region: cube(2, 1)})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := small.Submit(ctx, mapping.Request{Region: cube(2, 1)})
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(small.Pending()).To(Equal(1))
	})

	It("fails queued requests on close", func() {
		t := submit(d, mapping.Request{ID: "orphan", Region: cube(2, 1)})
		d.Close()

		var res mapping.Result
		Expect(t.Done()).To(Receive(&res))
		Expect(res.Err).To(MatchError(mapping.ErrClosed))

		_, err := d.Submit(context.Background(), mapping.Request{Region: cube(2, 1)})
		Expect(err).To(MatchError(mapping.ErrClosed))
	})

	It("accepts requests from many goroutines", func() {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := d.Submit(context.Background(), mapping.Request{Region: cube(2, 1)})
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()

		built := 0
		for d.OnUpdate(scene, true) != nil {
			built++
		}
		Expect(built).To(Equal(8))
	})
})
