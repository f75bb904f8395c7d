package flann

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorUnwrapsToSentinel(t *testing.T) {
	err := invalidParamf("BuildIndex", "bad thing: %d", 5)
	if !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("invalidParamf error does not unwrap to ErrInvalidParam: %v", err)
	}
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("error does not unwrap to *Error")
	}
	if fe.Kind != KindInvalidParam || fe.Op != "BuildIndex" {
		t.Fatalf("unexpected Error fields: %+v", fe)
	}
}

func TestEveryKindConstructorMapsToItsOwnSentinel(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{dimensionMismatchf("op", "x"), ErrDimensionMismatch},
		{capacityExceededf("op", "x"), ErrCapacityExceeded},
		{ioFailuref("op", "x"), ErrIOFailure},
		{buildFailuref("op", "x"), ErrBuildFailure},
		{notSupportedf("op", "x"), ErrNotSupported},
	}
	for _, c := range cases {
		if !errors.Is(c.err, c.want) {
			t.Fatalf("%v does not unwrap to %v", c.err, c.want)
		}
	}
}

func TestErrorMessageIncludesOpAndKind(t *testing.T) {
	err := invalidParamf("KNNSearch", "k must be positive, got %d", -1)
	msg := err.Error()
	if !strings.Contains(msg, "KNNSearch") || !strings.Contains(msg, "InvalidParam") {
		t.Fatalf("Error() = %q, want it to include the op and the kind", msg)
	}
}
