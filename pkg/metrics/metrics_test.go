package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the custom names", func() {
				So(m, ShouldNotBeNil)
				m.charactersCreated.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_characters_created_total"], ShouldBeTrue)
			})
		})

		Convey("When registering the same names twice", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording experience and level ups", func() {
			before := testutil.ToFloat64(globalManager.experienceGranted)
			levelUpsBefore := testutil.ToFloat64(globalManager.levelUps)

			RecordExperienceGranted(120)
			RecordExperienceGranted(-5)
			RecordLevelUp(3, 5)
			RecordLevelUp(5, 5)

			Convey("Then only positive grants and real level ups count", func() {
				So(testutil.ToFloat64(globalManager.experienceGranted)-before, ShouldEqual, 120)
				So(testutil.ToFloat64(globalManager.levelUps)-levelUpsBefore, ShouldEqual, 1)
			})
		})

		Convey("When recording labelled counters", func() {
			RecordNicknameCheck("taken")
			RecordNicknameRejected("NICKNAME_LENGTH_INVALID")
			RecordProgressionFailure("missing_level_definition")
			RecordQueueEnqueueError("queue_full")
			RecordStoreLatency("apply_experience", 1.5)
			RecordStoreError("apply_experience")
			RecordHTTPRequest("rankings", "GET", "200")
			RecordHTTPRequestDuration("rankings", "GET", "200", 3)
			RecordErrorByEndpoint("rankings", "GET", "not_found")
			RecordErrorByComponent("worker", "apply_error")

			Convey("Then the labelled series exist", func() {
				So(testutil.ToFloat64(globalManager.nicknameChecks.WithLabelValues("taken")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.progressionFailures.WithLabelValues("missing_level_definition")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.queueEnqueueError.WithLabelValues("queue_full")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(100)
			UpdateWorkerCount(4)
			UpdateRankedCharacters(42)
			UpdateSystemMemoryUsage(1024)
			UpdateSystemGoroutineCount(12)

			Convey("Then the gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.rankedCharacters), ShouldEqual, 42)
			})
		})

		Convey("When recording the remaining game counters", func() {
			So(func() {
				RecordCharacterCreated()
				RecordRankingQuery()
				RecordInventorySale(2, 300)
				RecordImageReplaced()
				RecordResultAccepted()
				RecordResultDuplicate()
				RecordResultApplied()
				RecordWorkerProcessingLatency(2)
				RecordWorkerError()
			}, ShouldNotPanic)
		})

		Convey("Then the exported registry is the custom one", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
