package types

import "testing"

func TestSubscribeFrame(t *testing.T) {
	got := string(SubscribeFrame(KindEntitlementsToken))
	want := `[5,"OnJsonApiEvent_entitlements_v1_token"]`
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestKindKnown(t *testing.T) {
	if !KindMessagingService.Known() || !KindEntitlementsToken.Known() {
		t.Fatalf("subscribed kinds must be known")
	}
	if Kind("OnJsonApiEvent").Known() {
		t.Fatalf("catch-all kind must not be known")
	}
}
