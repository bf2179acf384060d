package placeholder_test

import (
	"reflect"
	"testing"

	"github.com/valpere/scenetran/internal/placeholder"
)

func TestProtectRestore_RoundTrip(t *testing.T) {
	cases := []string{
		"Give {player} the <b>sword</b>",
		"%hero% said: wait\\n...no, {item.count} left",
		"<color=#ff0000>Danger</color>\\w[30]",
		"no markup at all",
	}
	for _, text := range cases {
		protected, markers := placeholder.Protect(text)
		if got := placeholder.Restore(protected, markers); got != text {
			t.Errorf("round trip failed: %q -> %q -> %q", text, protected, got)
		}
	}
}

func TestProtect_NumbersMarkersInOrder(t *testing.T) {
	protected, markers := placeholder.Protect("{a} then {b} then {c}")
	if protected != "[PH0] then [PH1] then [PH2]" {
		t.Errorf("unexpected protected text: %q", protected)
	}
	if want := []string{"{a}", "{b}", "{c}"}; !reflect.DeepEqual(markers, want) {
		t.Errorf("unexpected markers: %v", markers)
	}
}

func TestMissing(t *testing.T) {
	_, markers := placeholder.Protect("{a} and {b}")
	if missing := placeholder.Missing("[PH0] [PH1] kept both", markers); missing != nil {
		t.Errorf("expected no missing markers, got %v", missing)
	}
	if missing := placeholder.Missing("only [PH1] survived", markers); !reflect.DeepEqual(missing, []int{0}) {
		t.Errorf("expected [0], got %v", missing)
	}
}

func TestRestore_UnknownIndexKept(t *testing.T) {
	if got := placeholder.Restore("[PH7] stays", []string{"{a}"}); got != "[PH7] stays" {
		t.Errorf("unknown marker index should pass through, got %q", got)
	}
}

func TestProtect_PlainPercentNotCaptured(t *testing.T) {
	protected, markers := placeholder.Protect("a 50% discount")
	if len(markers) != 0 || protected != "a 50% discount" {
		t.Errorf("bare percent should not be captured: %q %v", protected, markers)
	}
}
