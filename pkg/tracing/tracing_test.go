package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup(t *testing.T) {
	Convey("Given tracing is disabled", t, func() {
		previous := otel.GetTracerProvider()
		shutdown, err := Setup(false, "stride", &bytes.Buffer{})
		So(err, ShouldBeNil)
		So(shutdown(context.Background()), ShouldBeNil)
		So(otel.GetTracerProvider(), ShouldEqual, previous)
	})

	Convey("Given tracing is enabled", t, func() {
		previous := otel.GetTracerProvider()
		defer otel.SetTracerProvider(previous)

		var buf bytes.Buffer
		shutdown, err := Setup(true, "stride", &buf)
		So(err, ShouldBeNil)

		Convey("When a span ends and the provider shuts down", func() {
			_, span := Tracer("test").Start(context.Background(), "compute")
			span.End()
			So(shutdown(context.Background()), ShouldBeNil)

			Convey("Then the span is written out", func() {
				So(buf.String(), ShouldContainSubstring, `"Name":"compute"`)
				So(buf.String(), ShouldContainSubstring, "stride")
			})
		})
	})
}

func TestEnd(t *testing.T) {
	Convey("Given a recorded span", t, func() {
		recorder := tracetest.NewSpanRecorder()
		provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

		Convey("When it ends with an error", func() {
			_, span := provider.Tracer("test").Start(context.Background(), "load")
			End(span, errors.New("gateway down"))

			Convey("Then the status is error", func() {
				ended := recorder.Ended()
				So(len(ended), ShouldEqual, 1)
				So(ended[0].Status().Code, ShouldEqual, codes.Error)
				So(len(ended[0].Events()), ShouldEqual, 1)
			})
		})

		Convey("When it ends cleanly", func() {
			_, span := provider.Tracer("test").Start(context.Background(), "load")
			End(span, nil)
			So(recorder.Ended()[0].Status().Code, ShouldEqual, codes.Unset)
		})
	})
}
