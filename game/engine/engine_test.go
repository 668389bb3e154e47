package engine

import (
	"reflect"
	"testing"
)

// testMap builds a small linear board:
//
//	0 start -> 1 payday -> 2 action(-500) -> 3 tax -> 4 career -> 5 retire
func testMap() *MapData {
	return &MapData{
		ID:               "test",
		Name:             "Test Map",
		Version:          "1.0",
		StartMoney:       10000,
		LoanUnit:         20000,
		LoanInterestRate: 1.25,
		Tiles: []Tile{
			{ID: 0, Type: TileStart, Next: []int{1}},
			{ID: 1, Type: TilePayday, Next: []int{2}},
			{ID: 2, Type: TileAction, Next: []int{3}, Event: &TileEvent{Type: TileEventMoney, Amount: -500, Text: "parking ticket"}},
			{ID: 3, Type: TileTax, Next: []int{4}},
			{ID: 4, Type: TileCareer, Next: []int{5}, Event: &TileEvent{Type: TileEventDrawCareer, Pool: "basic"}},
			{ID: 5, Type: TileRetire, Next: []int{}},
		},
		Careers: []Career{
			{ID: "career_a", Name: "Engineer", Salary: 20000, Pool: "basic"},
			{ID: "career_b", Name: "Artist", Salary: 10000, Pool: "basic"},
		},
		Houses: []House{
			{ID: "house_a", Name: "Cottage", Price: 50000, SellPrice: 70000},
		},
	}
}

// branchMap builds a board that forks at tile 10 into [11, 30] and rejoins:
//
//	0 start -> 10 branch -> 11 -> 12 retire
//	                     -> 30 -> 31 -> 32 retire
func branchMap() *MapData {
	return &MapData{
		ID:         "branch",
		Name:       "Branch Map",
		Version:    "1.0",
		StartMoney: 10000,
		LoanUnit:   20000,
		Tiles: []Tile{
			{ID: 0, Type: TileStart, Next: []int{10}},
			{ID: 10, Type: TileBranch, Next: []int{11, 30}, Labels: []string{"short road", "long road"}},
			{ID: 11, Type: TileAction, Next: []int{12}, Event: &TileEvent{Type: TileEventMoney, Amount: 100, Text: "found money"}},
			{ID: 12, Type: TileRetire, Next: []int{}},
			{ID: 30, Type: TileAction, Next: []int{31}, Event: &TileEvent{Type: TileEventMoney, Amount: 200, Text: "found money"}},
			{ID: 31, Type: TilePayday, Next: []int{32}},
			{ID: 32, Type: TileRetire, Next: []int{}},
		},
	}
}

func testPlayers(n int) []PlayerSeed {
	seeds := []PlayerSeed{
		{ID: "p1", Name: "Alice"},
		{ID: "p2", Name: "Bob"},
		{ID: "p3", Name: "Charlie"},
		{ID: "p4", Name: "Dave"},
	}
	return seeds[:n]
}

func TestInit(t *testing.T) {
	eng := NewEngine()
	state, err := eng.Init(testPlayers(2), testMap(), 42)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if len(state.Players) != 2 {
		t.Fatalf("Expected 2 players, got %d", len(state.Players))
	}
	if state.Players[0].Money != 10000 {
		t.Errorf("Expected starting money 10000, got %d", state.Players[0].Money)
	}
	if state.Players[0].Position != 0 {
		t.Errorf("Expected players on start tile, got %d", state.Players[0].Position)
	}
	if state.CurrentTurn != 0 {
		t.Errorf("Expected first player's turn, got %d", state.CurrentTurn)
	}
	if state.Phase != PhaseWaitingForSpin {
		t.Errorf("Expected phase %s, got %s", PhaseWaitingForSpin, state.Phase)
	}
}

func TestInit_PlayerCountBounds(t *testing.T) {
	eng := NewEngine()

	if _, err := eng.Init(testPlayers(1), testMap(), 42); err == nil {
		t.Error("Expected error for 1 player")
	}

	seven := make([]PlayerSeed, 7)
	for i := range seven {
		seven[i] = PlayerSeed{ID: string(rune('a' + i)), Name: "P"}
	}
	if _, err := eng.Init(seven, testMap(), 42); err == nil {
		t.Error("Expected error for 7 players")
	}
}

func TestSpin(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)

	ns, result, err := eng.Spin(state)
	if err != nil {
		t.Fatalf("Spin failed: %v", err)
	}
	if result.Value < 1 || result.Value > RouletteFaces {
		t.Errorf("Roll out of range: %d", result.Value)
	}
	if result.PlayerID != "p1" {
		t.Errorf("Expected p1 to spin, got %s", result.PlayerID)
	}
	if ns.Phase != PhaseMoving {
		t.Errorf("Expected phase %s, got %s", PhaseMoving, ns.Phase)
	}
	if ns.RNGSeed == state.RNGSeed {
		t.Error("Expected randomness state to advance")
	}

	// Input snapshot must be untouched.
	if state.Phase != PhaseWaitingForSpin {
		t.Error("Spin mutated its input snapshot")
	}
}

func TestSpin_WrongPhase(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Phase = PhaseMoving

	if _, _, err := eng.Spin(state); err == nil {
		t.Error("Expected error spinning outside waiting_for_spin")
	}
}

func TestSpin_Deterministic(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)

	_, first, _ := eng.Spin(state)
	_, second, _ := eng.Spin(state)
	if first.Value != second.Value {
		t.Errorf("Same snapshot produced different rolls: %d vs %d", first.Value, second.Value)
	}
}

// Scenario A: player 1 lands on a plain action tile with a fixed -500 event.
func TestAdvance_ActionTile(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Phase = PhaseMoving

	ns, events, err := eng.Advance(state, 2)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if ns.Players[0].Position != 2 {
		t.Errorf("Expected position 2, got %d", ns.Players[0].Position)
	}
	if got := ns.Players[0].Money; got != 10000-500 {
		t.Errorf("Expected money 9500, got %d", got)
	}
	if ns.Phase != PhaseTurnEnd {
		t.Errorf("Expected phase %s, got %s", PhaseTurnEnd, ns.Phase)
	}

	found := false
	for _, ev := range events {
		if ev.Type == EventMoneyChanged && ev.Amount == -500 {
			found = true
		}
	}
	if !found {
		t.Error("Expected a -500 money_changed event")
	}
}

func TestAdvance_PaydayOnPass(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Players[0].Salary = 20000
	state.Phase = PhaseMoving

	// Passes payday tile 1 on the way to tile 2; lands on the -500 action.
	ns, _, err := eng.Advance(state, 2)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if got := ns.Players[0].Money; got != 10000+20000-500 {
		t.Errorf("Expected money 29500 after pass-through payday, got %d", got)
	}
}

func TestAdvance_LandOnPaydayPaysOnce(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Players[0].Salary = 20000
	state.Phase = PhaseMoving

	ns, _, err := eng.Advance(state, 1)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if got := ns.Players[0].Money; got != 10000+20000 {
		t.Errorf("Expected one salary payment, got money %d", got)
	}
}

func TestAdvance_WrongPhase(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)

	_, _, err := eng.Advance(state, 3)
	if err == nil {
		t.Fatal("Expected error advancing outside moving phase")
	}
	if state.Players[0].Position != 0 {
		t.Error("Failed advance must leave the snapshot unchanged")
	}
}

// Scenario B: the walk reaches a branch with steps remaining and suspends.
func TestAdvance_BranchSuspension(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), branchMap(), 42)
	state.Phase = PhaseMoving

	ns, events, err := eng.Advance(state, 3)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if ns.Phase != PhaseChoosingPath {
		t.Fatalf("Expected phase %s, got %s", PhaseChoosingPath, ns.Phase)
	}
	if ns.Players[0].Position != 10 {
		t.Errorf("Expected suspension at branch tile 10, got %d", ns.Players[0].Position)
	}
	if ns.PendingSteps != 2 {
		t.Errorf("Expected 2 pending steps, got %d", ns.PendingSteps)
	}

	var choices []Choice
	for _, ev := range events {
		if ev.Type == EventChoiceRequired {
			choices = ev.Choices
		}
	}
	if len(choices) != 2 {
		t.Fatalf("Expected 2 path choices, got %d", len(choices))
	}
	if choices[1].Label != "long road" {
		t.Errorf("Expected map label on choice, got %q", choices[1].Label)
	}

	// choosePath(1) continues down successor 30 for the remaining steps.
	ns2, _, err := eng.ChoosePath(ns, 1)
	if err != nil {
		t.Fatalf("ChoosePath failed: %v", err)
	}
	if ns2.Players[0].Position != 31 {
		t.Errorf("Expected position 31 after remaining steps, got %d", ns2.Players[0].Position)
	}
	if ns2.Phase != PhaseTurnEnd {
		t.Errorf("Expected phase %s, got %s", PhaseTurnEnd, ns2.Phase)
	}
}

func TestChoosePath_InvalidIndex(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), branchMap(), 42)
	state.Phase = PhaseMoving

	ns, _, _ := eng.Advance(state, 3)
	if _, _, err := eng.ChoosePath(ns, 5); err == nil {
		t.Error("Expected error for out-of-range path index")
	}
}

func TestChoosePath_WrongPhase(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), branchMap(), 42)

	if _, _, err := eng.ChoosePath(state, 0); err == nil {
		t.Error("Expected error choosing path outside choosing_path phase")
	}
}

func TestAdvance_Deterministic(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Phase = PhaseMoving

	first, _, _ := eng.Advance(state, 4)
	second, _, _ := eng.Advance(state, 4)

	if !reflect.DeepEqual(first.Players, second.Players) {
		t.Error("Replaying the same advance produced different snapshots")
	}
	if first.RNGSeed != second.RNGSeed {
		t.Error("Replaying the same advance produced different randomness state")
	}
}

func TestCareerDraw(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Phase = PhaseMoving

	ns, events, err := eng.Advance(state, 4)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if ns.Players[0].Career == nil {
		t.Fatal("Expected a career to be assigned")
	}
	if ns.Players[0].Salary != ns.Players[0].Career.Salary {
		t.Error("Salary must match the assigned career")
	}

	found := false
	for _, ev := range events {
		if ev.Type == EventCareerAssigned {
			found = true
		}
	}
	if !found {
		t.Error("Expected a career_assigned event")
	}
}

func TestTaxMinimum(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Phase = PhaseMoving

	// No salary yet, so the minimum tax applies.
	ns, _, err := eng.Advance(state, 3)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if got := ns.Players[0].Money; got != 10000-MinimumTax {
		t.Errorf("Expected minimum tax of %d, got money %d", MinimumTax, got)
	}
}

// An unaffordable charge overdraws the balance and leaves it negative; there
// is no automatic loan, so debt stays untouched.
func TestTaxOverdraftPersists(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Players[0].Money = 1000
	state.Phase = PhaseMoving

	ns, _, err := eng.Advance(state, 3)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if got := ns.Players[0].Money; got != 1000-MinimumTax {
		t.Errorf("Expected balance %d after overdraft, got %d", 1000-MinimumTax, got)
	}
	if got := ns.Players[0].Debt; got != 0 {
		t.Errorf("Overdraft must not create debt, got %d", got)
	}
}

func TestGiftConservation(t *testing.T) {
	resolver := ClassicResolver{}
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(3), testMap(), 42)

	total := func(s *GameState) int64 {
		var sum int64
		for i := range s.Players {
			sum += s.Players[i].Money
		}
		return sum
	}
	before := total(state)

	marry := &Tile{ID: 99, Type: TileMarry, Next: []int{5}}
	ns, events := resolver.ResolveTile(state, marry)
	if total(ns) != before {
		t.Errorf("Wedding gifts must sum to zero: before %d, after %d", before, total(ns))
	}
	if !ns.Players[0].Married {
		t.Error("Expected the landing player to be married")
	}

	var delta int64
	for _, ev := range events {
		if ev.Type == EventMoneyChanged {
			delta += ev.Amount
		}
	}
	if delta != 0 {
		t.Errorf("Money events must sum to zero, got %d", delta)
	}
}

func TestLawsuitConservation(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(3), testMap(), 42)
	state.Phase = PhaseChoosingAction

	ns, _, err := eng.ResolveAction(state, PlayerAction{Kind: ActionLawsuitTarget, TargetID: "p2"})
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if got := ns.PlayerByID("p1").Money; got != 10000+LawsuitAward {
		t.Errorf("Expected plaintiff money %d, got %d", 10000+LawsuitAward, got)
	}
	if got := ns.PlayerByID("p2").Money; got != 10000-LawsuitAward {
		t.Errorf("Expected defendant money %d, got %d", 10000-LawsuitAward, got)
	}
	if got := ns.PlayerByID("p3").Money; got != 10000 {
		t.Errorf("Expected bystander untouched, got %d", got)
	}
}

func TestResolveAction_BuyHouse(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Players[0].Money = 60000
	state.Phase = PhaseChoosingAction

	ns, events, err := eng.ResolveAction(state, PlayerAction{Kind: ActionBuyHouse, HouseID: "house_a"})
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if got := ns.Players[0].Money; got != 10000 {
		t.Errorf("Expected money 10000 after purchase, got %d", got)
	}
	if len(ns.Players[0].Houses) != 1 {
		t.Fatal("Expected one owned house")
	}
	if ns.Phase != PhaseTurnEnd {
		t.Errorf("Expected phase %s, got %s", PhaseTurnEnd, ns.Phase)
	}

	found := false
	for _, ev := range events {
		if ev.Type == EventHousePurchased {
			found = true
		}
	}
	if !found {
		t.Error("Expected a house_purchased event")
	}
}

func TestResolveAction_BuyHouseUnaffordable(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Phase = PhaseChoosingAction

	ns, _, err := eng.ResolveAction(state, PlayerAction{Kind: ActionBuyHouse, HouseID: "house_a"})
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if got := ns.Players[0].Money; got != 10000 {
		t.Errorf("Unaffordable purchase must not change money, got %d", got)
	}
	if len(ns.Players[0].Houses) != 0 {
		t.Error("Unaffordable purchase must not grant the house")
	}
}

func TestResolveAction_Insurance(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Phase = PhaseChoosingAction

	ns, _, err := eng.ResolveAction(state, PlayerAction{Kind: ActionBuyInsurance, Insurance: InsuranceLife})
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	if !ns.Players[0].LifeInsurance {
		t.Error("Expected life insurance flag set")
	}
	if ns.Players[0].AutoInsurance {
		t.Error("Auto insurance must stay independent")
	}
}

func TestResolveAction_RepayDebt(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Players[0].Debt = 40000
	state.Players[0].Money = 30000
	state.Phase = PhaseChoosingAction

	ns, _, err := eng.ResolveAction(state, PlayerAction{Kind: ActionRepayDebt})
	if err != nil {
		t.Fatalf("ResolveAction failed: %v", err)
	}
	// Repay one loan unit (20000) at 1.25 interest = 25000.
	if got := ns.Players[0].Money; got != 5000 {
		t.Errorf("Expected money 5000 after repayment, got %d", got)
	}
	if got := ns.Players[0].Debt; got != 20000 {
		t.Errorf("Expected remaining debt 20000, got %d", got)
	}
}

func TestResolveAction_WrongPhase(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)

	if _, _, err := eng.ResolveAction(state, PlayerAction{Kind: ActionSkip}); err == nil {
		t.Error("Expected error resolving action outside choosing_action phase")
	}
}

func TestEndTurn(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(3), testMap(), 42)
	state.Phase = PhaseTurnEnd

	ns, err := eng.EndTurn(state)
	if err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if ns.CurrentTurn != 1 {
		t.Errorf("Expected turn 1, got %d", ns.CurrentTurn)
	}
	if ns.Phase != PhaseWaitingForSpin {
		t.Errorf("Expected phase %s, got %s", PhaseWaitingForSpin, ns.Phase)
	}
}

func TestEndTurn_SkipsRetired(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(3), testMap(), 42)
	state.Players[1].Retired = true
	state.Phase = PhaseTurnEnd

	ns, err := eng.EndTurn(state)
	if err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if ns.CurrentTurn != 2 {
		t.Errorf("Expected retired player skipped, turn went to %d", ns.CurrentTurn)
	}
}

func TestEndTurn_WrongPhase(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)

	if _, err := eng.EndTurn(state); err == nil {
		t.Error("Expected error ending turn outside turn_end phase")
	}
}

// Scenario D: IsFinished flips exactly when the last player retires.
func TestIsFinished(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)

	if eng.IsFinished(state) {
		t.Error("Fresh game must not be finished")
	}

	state.Players[0].Retired = true
	if eng.IsFinished(state) {
		t.Error("Game with one active player must not be finished")
	}

	state.Players[1].Retired = true
	if !eng.IsFinished(state) {
		t.Error("Game with all players retired must be finished")
	}
}

func TestRetireOnLanding(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Phase = PhaseMoving

	// Overshooting the retire tile still stops there.
	ns, events, err := eng.Advance(state, 9)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if ns.Players[0].Position != 5 {
		t.Errorf("Expected position 5 (retire tile), got %d", ns.Players[0].Position)
	}
	if !ns.Players[0].Retired {
		t.Error("Expected player retired on the retire tile")
	}

	found := false
	for _, ev := range events {
		if ev.Type == EventPlayerRetired {
			found = true
		}
	}
	if !found {
		t.Error("Expected a player_retired event")
	}
}

func TestRankings(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(3), testMap(), 42)
	state.Players[0].Money = 50000
	state.Players[1].Money = 100000
	state.Players[2].Money = 50000

	rankings := eng.Rankings(state)
	if rankings[0].PlayerID != "p2" || rankings[0].Rank != 1 {
		t.Errorf("Expected p2 ranked first, got %s rank %d", rankings[0].PlayerID, rankings[0].Rank)
	}
	// Ties broken by original turn order: p1 before p3.
	if rankings[1].PlayerID != "p1" {
		t.Errorf("Expected p1 second on tie-break, got %s", rankings[1].PlayerID)
	}
	if rankings[2].PlayerID != "p3" || rankings[2].Rank != 3 {
		t.Errorf("Expected p3 third, got %s rank %d", rankings[2].PlayerID, rankings[2].Rank)
	}

	again := eng.Rankings(state)
	if !reflect.DeepEqual(rankings, again) {
		t.Error("Rankings must be stable across calls on the same snapshot")
	}
}

func TestRankings_AssetFormula(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Players[0].Money = 10000
	state.Players[0].Houses = []House{{ID: "h", Name: "H", Price: 50000, SellPrice: 70000}}
	state.Players[0].PromissoryNotes = []PromissoryNote{{ID: "n", Amount: 5000}}
	state.Players[0].Debt = 20000 // x1.25 interest = 25000

	rankings := eng.Rankings(state)
	var got int64
	for _, r := range rankings {
		if r.PlayerID == "p1" {
			got = r.TotalAssets
		}
	}
	want := int64(10000 + 70000 + 5000 - 25000)
	if got != want {
		t.Errorf("Expected total assets %d, got %d", want, got)
	}
}

func TestFixedRoulette(t *testing.T) {
	eng := NewEngineWith(ClassicResolver{}, &FixedRoulette{Values: []int{4, 7}})
	state, _ := eng.Init(testPlayers(2), testMap(), 42)

	_, first, _ := eng.Spin(state)
	if first.Value != 4 {
		t.Errorf("Expected fixed roll 4, got %d", first.Value)
	}
}

func TestClone_NoSharedMutableState(t *testing.T) {
	eng := NewEngine()
	state, _ := eng.Init(testPlayers(2), testMap(), 42)
	state.Players[0].Stocks = []Stock{{ID: "s1", Name: "stock"}}

	clone := state.Clone()
	clone.Players[0].Money = 0
	clone.Players[0].Stocks[0].ID = "changed"

	if state.Players[0].Money != 10000 {
		t.Error("Clone shares player money with the original")
	}
	if state.Players[0].Stocks[0].ID != "s1" {
		t.Error("Clone shares stock slice with the original")
	}
}
