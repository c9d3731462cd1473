package game

import (
	"testing"

	"github.com/alignmentgames/secretagi/internal/game/event"
)

func viewState(t *testing.T) *State {
	t.Helper()
	state := boardState(5, 2)
	state.CurrentDirectorIndex = 0
	state.NominatedEngineerID = "p2"
	state.DirectorCards = []Paper{
		{ID: "paper-00", Capability: 1, Safety: 1},
		{ID: "paper-01", Capability: 2, Safety: 0},
		{ID: "paper-02", Capability: 0, Safety: 2},
	}
	state.ViewedAllegiances = map[string]map[string]Allegiance{
		"p1": {"p4": AllegianceAcceleration},
	}
	return state
}

func TestBuildPlayerViewHidesDeckAndOtherHands(t *testing.T) {
	state := viewState(t)

	view, err := BuildPlayerView(state, "p2")
	if err != nil {
		t.Fatalf("build view: %v", err)
	}
	if view.DeckCount != len(state.Deck) {
		t.Fatalf("expected deck count %d, got %d", len(state.Deck), view.DeckCount)
	}
	if len(view.Hand) != 0 {
		t.Fatal("the nominee must not see the director's cards")
	}
	if view.Role != RoleSafety {
		t.Fatalf("expected own role, got %s", view.Role)
	}
	if len(view.Allies) != 0 {
		t.Fatal("a safety researcher has no known allies")
	}
	if view.ViewedAllegiances != nil {
		t.Fatal("p2 has viewed no allegiances")
	}
}

func TestBuildPlayerViewDirectorSeesHand(t *testing.T) {
	state := viewState(t)

	view, err := BuildPlayerView(state, "p1")
	if err != nil {
		t.Fatalf("build view: %v", err)
	}
	if len(view.Hand) != 3 {
		t.Fatalf("expected the director's three cards, got %d", len(view.Hand))
	}
	if view.ViewedAllegiances["p4"] != AllegianceAcceleration {
		t.Fatal("expected p1's own viewed allegiance")
	}
	if view.CurrentDirectorID != "p1" {
		t.Fatalf("expected director p1, got %s", view.CurrentDirectorID)
	}
}

func TestBuildPlayerViewEvilSeeEachOther(t *testing.T) {
	state := viewState(t)

	view, err := BuildPlayerView(state, "p5")
	if err != nil {
		t.Fatalf("build view: %v", err)
	}
	if len(view.Allies) != 1 || view.Allies[0] != "p4" {
		t.Fatalf("the AGI should know the accelerationist, got %v", view.Allies)
	}

	view, err = BuildPlayerView(state, "p4")
	if err != nil {
		t.Fatalf("build view: %v", err)
	}
	if len(view.Allies) != 1 || view.Allies[0] != "p5" {
		t.Fatalf("the accelerationist should know the AGI, got %v", view.Allies)
	}
}

func TestBuildPlayerViewRejectsUnknownPlayer(t *testing.T) {
	if _, err := BuildPlayerView(viewState(t), "ghost"); err == nil {
		t.Fatal("expected error for unseated player")
	}
}

func TestVisibleEventsFiltersPrivateAndOldEvents(t *testing.T) {
	state := viewState(t)

	public, err := event.New(event.TypePaperPublished, "p2", 3, event.PaperPublishedPayload{PaperID: "paper-00"})
	if err != nil {
		t.Fatalf("public event: %v", err)
	}
	private, err := event.NewPrivate(event.TypeStateChanged, "p1", "p1", 3, event.StateChangedPayload{
		Kind: event.StateChangeAllegianceViewed,
	})
	if err != nil {
		t.Fatalf("private event: %v", err)
	}
	old, err := event.New(event.TypeVoteCompleted, "", 1, event.VoteCompletedPayload{VoteType: "team"})
	if err != nil {
		t.Fatalf("old event: %v", err)
	}
	state.Events = []event.Event{old, public, private}

	visible := VisibleEvents(state, "p2", 2)
	if len(visible) != 1 || visible[0].Type != event.TypePaperPublished {
		t.Fatalf("p2 should see only the publication, got %v", visible)
	}

	visible = VisibleEvents(state, "p1", 2)
	if len(visible) != 2 {
		t.Fatalf("p1 should see the publication and the private view, got %d", len(visible))
	}

	visible = VisibleEvents(state, "p1", 0)
	if len(visible) != 3 {
		t.Fatalf("p1 should see all events from turn zero, got %d", len(visible))
	}
}
