package config

import (
	"errors"
	"testing"

	"poolquest/native/challenges"
)

const sampleCatalog = `
challenges:
  - name: First Deposit
    type: liquidity
    required_amount: "1_000_000_000_000_000_000"
    reward_points: "50"
    badge: 10
    start_time: 0
    end_time: 4102444800
  - name: Trader
    type: swap
    required_amount: "5000000000000000000"
    reward_points: "75"
    badge: 11
    end_time: 4102444800
  - name: Launch Week
    type: time
    reward_points: "20"
    badge: 12
    start_time: 1700000000
    end_time: 1700604800
    active: false
quests:
  - name: Pool Regular
    challenges: [0, 1]
    reward_points: "150"
    badge: 20
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(catalog.Challenges) != 3 || len(catalog.Quests) != 1 {
		t.Fatalf("unexpected catalog sizes %d/%d", len(catalog.Challenges), len(catalog.Quests))
	}

	first, err := catalog.Challenges[0].Definition()
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	if first.Type != challenges.LiquidityProvision || first.RequiredAmount.Dec() != "1000000000000000000" {
		t.Fatalf("unexpected first challenge %+v", first)
	}
	if !first.Active || first.BadgeID != 10 {
		t.Fatalf("unexpected activation or badge %+v", first)
	}

	timed, err := catalog.Challenges[2].Definition()
	if err != nil {
		t.Fatalf("definition: %v", err)
	}
	if timed.Active || timed.Type != challenges.TimeBased || !timed.RequiredAmount.IsZero() {
		t.Fatalf("unexpected timed challenge %+v", timed)
	}

	reward, err := catalog.Quests[0].Reward()
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	if reward.Uint64() != 150 {
		t.Fatalf("unexpected quest reward %s", reward.Dec())
	}
}

func TestParseCatalogRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"badge out of range": `
challenges:
  - type: time
    badge: 256
`,
		"unknown type": `
challenges:
  - type: staking
`,
		"bad amount": `
challenges:
  - type: swap
    required_amount: "-5"
`,
		"dangling quest": `
challenges:
  - type: time
quests:
  - challenges: [1]
`,
		"empty quest": `
challenges:
  - type: time
quests:
  - name: nothing
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCatalog([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	_, err := ParseCatalog([]byte(cases["badge out of range"]))
	if !errors.Is(err, challenges.ErrInvalidDefinition) {
		t.Fatalf("expected invalid definition, got %v", err)
	}
}
