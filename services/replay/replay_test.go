package replay

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"poolquest/core"
	"poolquest/native/challenges"
	"poolquest/native/oracle"
	"poolquest/native/progression"
	"poolquest/storage"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	identity = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	user     = "0x0000000000000000000000000000000000000101"
)

func newReplayer(t *testing.T) (*Replayer, *core.Processor) {
	t.Helper()
	feed := &oracle.StaticFeed{}
	proc, err := core.NewProcessor(storage.NewMemDB(), feed, core.Options{RegistryIdentity: identity})
	require.NoError(t, err)
	t.Cleanup(func() { _ = proc.Close() })

	ctx := context.Background()
	require.NoError(t, proc.AssignRole(ctx, challenges.RoleChallengeAdmin, admin))
	require.NoError(t, proc.AssignRole(ctx, progression.RoleRewardsAdmin, admin))
	require.NoError(t, proc.BindRewardGranter(ctx, admin, identity))
	_, err = proc.CreateChallenge(ctx, admin, challenges.Challenge{
		Name:           "swapper",
		Type:           challenges.Swapping,
		RequiredAmount: uint256.NewInt(1_000_000_000_000_000_000),
		RewardPoints:   uint256.NewInt(100),
		BadgeID:        40,
		EndTime:        uint64(time.Now().Add(time.Hour).Unix()),
	})
	require.NoError(t, err)
	return New(proc, feed, nil), proc
}

func TestReplayAppliesRecords(t *testing.T) {
	r, proc := newReplayer(t)
	now := time.Now().Unix()
	log := strings.Join([]string{
		`# rewards before the first price are rejected`,
		`{"kind":"liquidity","user":"` + user + `","amount0":"1000000000000000000"}`,
		`{"kind":"price","price":"200000000000","timestamp":` + itoa(now) + `}`,
		`{"kind":"liquidity","user":"` + user + `","amount0":"-1000000000000000000","amount1":"-2000"}`,
		`{"kind":"complete_challenge","user":"` + user + `","id":0}`,
		`{"kind":"swap","user":"` + user + `","zero_for_one":true,"amount_specified":"1_000_000_000_000_000_000","amount0":"1000000000000000000","amount1":"-1999"}`,
		`{"kind":"complete_challenge","user":"` + user + `","id":0}`,
		``,
	}, "\n")

	summary, err := r.Run(context.Background(), strings.NewReader(log))
	require.NoError(t, err)
	require.Equal(t, 4, summary.Applied)
	require.Equal(t, map[string]int{"no_round": 1, "requirement_not_met": 1}, summary.Rejected)

	points, err := proc.Points(common.HexToAddress(user))
	require.NoError(t, err)
	require.Equal(t, uint64(500), points.Uint64())
}

func TestReplayStopsOnMalformedLine(t *testing.T) {
	r, _ := newReplayer(t)
	_, err := r.Run(context.Background(), strings.NewReader(`{"kind":"liquidity","user":"nope"}`))
	require.ErrorContains(t, err, "line 1")

	_, err = r.Run(context.Background(), strings.NewReader(`{"kind":"mint"}`))
	require.ErrorContains(t, err, "unknown kind")

	_, err = r.Run(context.Background(), strings.NewReader(`{"kind":`))
	require.ErrorContains(t, err, "decode")
}

func itoa(v int64) string {
	return new(uint256.Int).SetUint64(uint64(v)).Dec()
}

func TestReplayHonoursCanceledContextWhenThrottled(t *testing.T) {
	r, _ := newReplayer(t)
	r.SetRate(0.001)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	log := `{"kind":"price","price":"1","timestamp":1}` + "\n" + `{"kind":"price","price":"1","timestamp":2}`
	_, err := r.Run(ctx, strings.NewReader(log))
	require.Error(t, err)
}

func TestReplayFollowsLogTime(t *testing.T) {
	clock := NewClock()
	feed := &oracle.StaticFeed{}
	proc, err := core.NewProcessor(storage.NewMemDB(), feed, core.Options{
		RegistryIdentity: identity,
		OracleMaxAge:     10 * time.Minute,
		Now:              clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = proc.Close() })

	ctx := context.Background()
	require.NoError(t, proc.AssignRole(ctx, challenges.RoleChallengeAdmin, admin))
	require.NoError(t, proc.AssignRole(ctx, progression.RoleRewardsAdmin, admin))
	require.NoError(t, proc.BindRewardGranter(ctx, admin, identity))
	_, err = proc.CreateChallenge(ctx, admin, challenges.Challenge{
		Name:         "launch week",
		Type:         challenges.TimeBased,
		RewardPoints: uint256.NewInt(25),
		BadgeID:      41,
		StartTime:    1_000_000_000,
		EndTime:      1_000_003_600,
	})
	require.NoError(t, err)

	other := "0x0000000000000000000000000000000000000202"
	log := strings.Join([]string{
		`{"kind":"price","price":"200000000000","timestamp":1000000000}`,
		`{"kind":"complete_challenge","user":"` + user + `","id":0,"timestamp":1000000100}`,
		`{"kind":"liquidity","user":"` + user + `","amount0":"1000000000000000000"}`,
		`{"kind":"complete_challenge","user":"` + other + `","id":0,"timestamp":1000007200}`,
		`{"kind":"liquidity","user":"` + other + `","amount0":"1000000000000000000"}`,
		`{"kind":"complete_challenge","user":"` + other + `","id":0,"timestamp":1000000200}`,
	}, "\n")

	r := New(proc, feed, nil)
	r.SetClock(clock)
	summary, err := r.Run(ctx, strings.NewReader(log))
	require.NoError(t, err)
	require.Equal(t, 3, summary.Applied)
	require.Equal(t, map[string]int{"outside_window": 2, "stale_price": 1}, summary.Rejected)
	require.Equal(t, time.Unix(1_000_007_200, 0).UTC(), clock.Now())

	points, err := proc.Points(common.HexToAddress(user))
	require.NoError(t, err)
	require.Equal(t, uint64(225), points.Uint64())
	completed, err := proc.CompletedChallenges(common.HexToAddress(user))
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, completed)
}

func TestClockNeverMovesBackwards(t *testing.T) {
	clock := NewClock()
	before := time.Now()
	require.False(t, clock.Now().Before(before))

	clock.Advance(2_000)
	clock.Advance(1_000)
	clock.Advance(0)
	require.Equal(t, time.Unix(2_000, 0).UTC(), clock.Now())
}
