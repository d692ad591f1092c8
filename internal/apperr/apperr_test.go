package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataCoversEveryCode(t *testing.T) {
	codes := []Code{
		CodeValidation, CodeInsufficientPayment, CodeStock, CodeNotFound,
		CodeUnauthorized, CodeForbidden, CodeConflict, CodePersistence, CodeInternal,
	}
	for _, code := range codes {
		meta := MetadataFor(code)
		if meta.HTTPStatus == 0 {
			t.Fatalf("code %s has no http status", code)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s has no public message", code)
		}
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("NO_SUCH_CODE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected 500 fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodePersistence, "insert sale")
	if !errors.Is(err, cause) {
		t.Fatal("wrapped error should match its cause")
	}
	if CodeOf(err) != CodePersistence {
		t.Fatalf("expected PERSISTENCE_ERROR, got %s", CodeOf(err))
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(nil, CodePersistence, "noop"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAsFindsCodeThroughFmtWrapping(t *testing.T) {
	inner := New(CodeStock, "insufficient stock for rt1")
	outer := fmt.Errorf("record sale: %w", inner)
	appErr, ok := As(outer)
	if !ok {
		t.Fatal("expected typed error in chain")
	}
	if appErr.Code != CodeStock {
		t.Fatalf("expected STOCK_ERROR, got %s", appErr.Code)
	}
}

func TestCodeOfUntypedError(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != CodeInternal {
		t.Fatalf("expected INTERNAL_ERROR, got %s", got)
	}
}
