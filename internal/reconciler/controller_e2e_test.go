package reconciler

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/giantswarm/foo-controller/internal/store"
)

var _ = Describe("Controller", func() {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		clk     *testingclock.FakeClock
		mem     *store.Memory
		metrics *Metrics
		calls   *countingReconciler
		mgr     *Manager
		key     Key
	)

	// startController runs a single-worker manager over s with simulated time.
	startController := func(s store.Store, resync time.Duration) {
		foo := NewFooReconciler(s)
		foo.Clock = clk
		calls = &countingReconciler{fn: foo.Reconcile}

		mgr = NewManager(s, ManagerConfig{WorkerCount: 1, ResyncPeriod: resync},
			WithClock(clk), WithMetrics(metrics))
		Expect(mgr.RegisterReconciler(calls)).To(Succeed())
		Expect(mgr.Start(ctx)).To(Succeed())
	}

	readFoo := func() *unstructured.Unstructured {
		obj, err := mem.Get(context.Background(), FooKind, "ns", "foo1")
		Expect(err).NotTo(HaveOccurred())
		return obj
	}

	notBefore := func() time.Time {
		t, _ := mgr.queue.NotBefore(key)
		return t
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		mgr = nil
		clk = testingclock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		mem = store.NewMemory(store.WithClock(clk))
		metrics = NewMetrics("")
		key = Key{Kind: FooKind, Namespace: "ns", Name: "foo1"}

		_, err := mem.Create(ctx, FooKind, newFoo("ns", "foo1", "a bad thing"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cancel()
		if mgr != nil {
			Expect(mgr.Stop()).To(Succeed())
		}
		mem.Close()
	})

	Context("when a Foo mentions something bad", func() {
		It("marks it bad and checks it again after 1800 seconds", func() {
			start := clk.Now()
			startController(mem, -1)

			// The status patch is observed as a modification and reconciled
			// once more without changing anything.
			Eventually(calls.calls.Load).Should(BeEquivalentTo(2))
			Eventually(notBefore).Should(Equal(start.Add(1800 * time.Second)))

			obj := readFoo()
			isBad, found, err := unstructured.NestedBool(obj.Object, "status", "is_bad")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(isBad).To(BeTrue())
			rv := obj.GetResourceVersion()

			Eventually(clk.HasWaiters).Should(BeTrue())
			clk.Step(1799 * time.Second)
			Consistently(calls.calls.Load, 200*time.Millisecond).Should(BeEquivalentTo(2))

			clk.Step(time.Second)
			Eventually(calls.calls.Load).Should(BeEquivalentTo(3))
			Expect(readFoo().GetResourceVersion()).To(Equal(rv))

			Expect(testutil.ToFloat64(metrics.handledEvents.WithLabelValues("Foo"))).To(BeEquivalentTo(3))
			Expect(testutil.ToFloat64(metrics.reconcileErrors.WithLabelValues("Foo", ReasonConflict))).To(BeZero())
		})

		It("reconciles identically on a periodic resync", func() {
			startController(mem, 5*time.Minute)

			Eventually(calls.calls.Load).Should(BeEquivalentTo(2))
			before := readFoo()

			clk.Step(5 * time.Minute)
			Eventually(calls.calls.Load).Should(BeEquivalentTo(3))

			after := readFoo()
			Expect(after.GetResourceVersion()).To(Equal(before.GetResourceVersion()))
			Expect(after.Object["status"]).To(Equal(before.Object["status"]))
		})
	})

	Context("when the status patch conflicts", func() {
		It("records one failure and retries after 360 seconds", func() {
			start := clk.Now()
			startController(&conflictingStore{Memory: mem}, -1)

			Eventually(func() float64 {
				return testutil.ToFloat64(metrics.reconcileErrors.WithLabelValues("Foo", ReasonConflict))
			}).Should(BeEquivalentTo(1))
			Eventually(notBefore).Should(Equal(start.Add(360 * time.Second)))

			Expect(testutil.ToFloat64(metrics.reconcileSuccess.WithLabelValues("Foo"))).To(BeZero())
			Expect(calls.calls.Load()).To(BeEquivalentTo(1))

			status, ok := mgr.GetStatus(key)
			Expect(ok).To(BeTrue())
			Expect(status.State).To(Equal(StateError))
			Expect(status.RetryCount).To(Equal(1))

			Eventually(clk.HasWaiters).Should(BeTrue())
			clk.Step(360 * time.Second)
			Eventually(calls.calls.Load).Should(BeEquivalentTo(2))
		})
	})

	Context("when the Foo is deleted", func() {
		It("reports it deleted and forgets it after the next miss", func() {
			startController(mem, -1)
			Eventually(calls.calls.Load).Should(BeEquivalentTo(2))

			Expect(mem.Delete(ctx, FooKind, "ns", "foo1")).To(Succeed())
			Eventually(func() ReconcileState {
				status, _ := mgr.GetStatus(key)
				return status.State
			}).Should(Equal(StateDeleted))

			Eventually(clk.HasWaiters).Should(BeTrue())
			clk.Step(DefaultRequeueInterval)
			Eventually(func() bool {
				_, ok := mgr.GetStatus(key)
				return ok
			}).Should(BeFalse())
			Expect(mgr.GetQueueLength()).To(BeZero())
			Expect(calls.calls.Load()).To(BeEquivalentTo(2))
		})
	})
})
