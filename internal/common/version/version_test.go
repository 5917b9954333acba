package version

import (
	"strings"
	"testing"
)

func TestVersionEmbedded(t *testing.T) {
	if Get() == "" {
		t.Fatal("Get() returned empty version")
	}
	if strings.ContainsAny(Get(), " \r\n\t") {
		t.Errorf("Get() = %q, want no whitespace", Get())
	}
	if want := "msgraphextract/" + Get(); UserAgent() != want {
		t.Errorf("UserAgent() = %q, want %q", UserAgent(), want)
	}
}
