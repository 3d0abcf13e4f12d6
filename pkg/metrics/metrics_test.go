package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then every collector should be registered there", func() {
				So(manager, ShouldNotBeNil)
				manager.mutationsTotal.WithLabelValues("plus.vouch", "success").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_mutations_total")
			})
		})

		Convey("When creating two managers on separate registries", func() {
			So(func() {
				NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))
				NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))
			}, ShouldNotPanic)
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given the global manager rebuilt with naming options", t, func() {
		Configure(
			WithNamespace("plus"),
			WithSubsystem("api"),
			WithHistogramBuckets([]float64{2, 20}),
		)
		Reset(func() { Configure() })

		RecordMutation("plus.vouch", "success", 3)

		Convey("Then the served registry carries the configured names", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			var found bool
			for _, f := range families {
				if f.GetName() != "plus_api_mutation_latency_milliseconds" {
					continue
				}
				found = true
				So(f.GetMetric()[0].GetHistogram().GetBucket(), ShouldHaveLength, 2)
			}
			So(found, ShouldBeTrue)
		})

		Convey("Then empty options keep the defaults", func() {
			Configure(WithNamespace(""), WithHistogramBuckets(nil))
			So(global().namespace, ShouldEqual, "plushub")
			So(global().histogramBuckets, ShouldHaveLength, 10)
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording a mutation outcome", func() {
			before := testutil.ToFloat64(global().mutationsTotal.WithLabelValues("plus.suggestion", "error"))
			RecordMutation("plus.suggestion", "error", 12)

			Convey("Then the labelled counter should increase by one", func() {
				after := testutil.ToFloat64(global().mutationsTotal.WithLabelValues("plus.suggestion", "error"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording invalidations", func() {
			before := testutil.ToFloat64(global().invalidationsTotal.WithLabelValues("plus.statuses"))
			RecordInvalidation("plus.statuses")
			RecordInvalidation("plus.statuses")

			Convey("Then each call should count", func() {
				after := testutil.ToFloat64(global().invalidationsTotal.WithLabelValues("plus.statuses"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When updating gauges", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(64)
			UpdateCacheEntries(3)

			Convey("Then they should hold the last value", func() {
				So(testutil.ToFloat64(global().queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(global().queueCapacity), ShouldEqual, 64)
				So(testutil.ToFloat64(global().cacheEntries), ShouldEqual, 3)
			})
		})

		Convey("When recording the remaining helpers", func() {
			So(func() {
				RecordMutationRejected("plus.vouch", "busy")
				RecordValidationFailure("vouch", "tier")
				RecordCacheRead("plus.suggestions", "hit")
				RecordCacheEviction()
				RecordSuggestionCreated()
				RecordCommentAdded()
				RecordVouch("2", "EU")
				RecordEventEdited()
				RecordAuthorizationDenied("edit_event")
				RecordHTTPRequest("/plus/vouch", "POST", "200")
				RecordHTTPRequestDuration("/plus/vouch", "POST", "200", 3)
				RecordErrorByEndpoint("/plus/vouch", "POST", "client_error")
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError("closed")
				RecordNotificationDelivered("success", 1)
				RecordDeliveryError()
				UpdateWorkerActiveCount(2)
				RecordErrorByComponent("queue", "closed")
				RecordStoreLatency("memory", "list_suggestions", 0.5)
				UpdateSystemGoroutineCount(10)
				UpdateSystemMemoryUsage(1 << 20)
			}, ShouldNotPanic)
		})

		Convey("When gathering the global registry", func() {
			_, err := GetRegistry().Gather()

			Convey("Then it should not fail", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}
