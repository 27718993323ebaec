package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"poolquest/core"
	"poolquest/native/hooks"
	"poolquest/native/oracle"
)

// Record kinds understood by the replayer.
const (
	KindPrice             = "price"
	KindLiquidity         = "liquidity"
	KindSwap              = "swap"
	KindCompleteChallenge = "complete_challenge"
	KindCompleteQuest     = "complete_quest"
)

const maxLineBytes = 1 << 20

// Record is a single line of a replay log. Amounts are decimal strings so
// full 256-bit values survive JSON decoding.
type Record struct {
	Kind            string `json:"kind"`
	User            string `json:"user,omitempty"`
	Price           string `json:"price,omitempty"`
	Timestamp       uint64 `json:"timestamp,omitempty"`
	Amount0         string `json:"amount0,omitempty"`
	Amount1         string `json:"amount1,omitempty"`
	ZeroForOne      bool   `json:"zero_for_one,omitempty"`
	AmountSpecified string `json:"amount_specified,omitempty"`
	ID              uint64 `json:"id,omitempty"`
}

// Summary counts the outcome of a replay.
type Summary struct {
	Lines    int
	Applied  int
	Rejected map[string]int
}

// Replayer feeds pool events and completion requests from a log into a
// processor. Price records are pushed into feed before the records that
// follow them are applied.
type Replayer struct {
	proc    *core.Processor
	feed    *oracle.StaticFeed
	logger  *slog.Logger
	limiter *rate.Limiter
	clock   *Clock
}

// Clock is a time source that follows the timestamps of a replay log. Until
// the first timestamped record it reports the wall clock. It never moves
// backwards.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock that has not observed any record yet.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the latest observed record time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now.IsZero() {
		return time.Now()
	}
	return c.now
}

// Advance moves the clock to ts if it is later than the current reading.
func (c *Clock) Advance(ts uint64) {
	if ts == 0 {
		return
	}
	next := time.Unix(int64(ts), 0).UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	if next.After(c.now) {
		c.now = next
	}
}

// New constructs a replayer.
func New(proc *core.Processor, feed *oracle.StaticFeed, logger *slog.Logger) *Replayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replayer{proc: proc, feed: feed, logger: logger.With(slog.String("component", "replay"))}
}

// SetClock makes the replayer advance clock with every timestamped record.
// The processor should read the same clock through core.WithClock so
// challenge windows and oracle freshness follow log time.
func (r *Replayer) SetClock(clock *Clock) {
	r.clock = clock
}

// SetRate throttles the replay to perSecond records. Zero or less removes the
// limit.
func (r *Replayer) SetRate(perSecond float64) {
	if perSecond <= 0 {
		r.limiter = nil
		return
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Run applies every record read from r. Rejected calls are counted by reason
// and do not stop the replay; malformed lines do.
func (r *Replayer) Run(ctx context.Context, in io.Reader) (Summary, error) {
	summary := Summary{Rejected: map[string]int{}}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		summary.Lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return summary, err
			}
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return summary, fmt.Errorf("line %d: decode: %w", summary.Lines, err)
		}
		err := r.apply(ctx, rec)
		var malformed *malformedError
		switch {
		case errors.As(err, &malformed):
			return summary, fmt.Errorf("line %d: %w", summary.Lines, err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return summary, err
		case err != nil:
			reason := core.Reason(err)
			summary.Rejected[reason]++
			r.logger.Debug("record rejected",
				slog.Int("line", summary.Lines),
				slog.String("kind", rec.Kind),
				slog.String("reason", reason))
		default:
			summary.Applied++
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("read replay log: %w", err)
	}
	return summary, nil
}

func (r *Replayer) apply(ctx context.Context, rec Record) error {
	if r.clock != nil {
		r.clock.Advance(rec.Timestamp)
	}
	switch strings.ToLower(strings.TrimSpace(rec.Kind)) {
	case KindPrice:
		price, err := parseInt("price", rec.Price)
		if err != nil {
			return err
		}
		r.feed.Set(price, rec.Timestamp)
		return nil
	case KindLiquidity:
		user, delta, err := r.poolFields(rec)
		if err != nil {
			return err
		}
		_, err = r.proc.HandleLiquidityAdded(ctx, user, delta)
		return err
	case KindSwap:
		user, delta, err := r.poolFields(rec)
		if err != nil {
			return err
		}
		specified, err := parseInt("amount_specified", rec.AmountSpecified)
		if err != nil {
			return err
		}
		_, err = r.proc.HandleSwap(ctx, user, hooks.SwapParams{ZeroForOne: rec.ZeroForOne, AmountSpecified: specified}, delta)
		return err
	case KindCompleteChallenge:
		user, err := parseUser(rec.User)
		if err != nil {
			return err
		}
		return r.proc.CompleteChallenge(ctx, user, rec.ID)
	case KindCompleteQuest:
		user, err := parseUser(rec.User)
		if err != nil {
			return err
		}
		return r.proc.CompleteQuest(ctx, user, rec.ID)
	default:
		return &malformedError{msg: fmt.Sprintf("unknown kind %q", rec.Kind)}
	}
}

func (r *Replayer) poolFields(rec Record) (common.Address, hooks.BalanceDelta, error) {
	user, err := parseUser(rec.User)
	if err != nil {
		return common.Address{}, hooks.BalanceDelta{}, err
	}
	amount0, err := parseInt("amount0", rec.Amount0)
	if err != nil {
		return common.Address{}, hooks.BalanceDelta{}, err
	}
	amount1, err := parseInt("amount1", rec.Amount1)
	if err != nil {
		return common.Address{}, hooks.BalanceDelta{}, err
	}
	return user, hooks.BalanceDelta{Amount0: amount0, Amount1: amount1}, nil
}

type malformedError struct {
	msg string
}

func (e *malformedError) Error() string { return e.msg }

func parseUser(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, &malformedError{msg: fmt.Sprintf("invalid user %q", raw)}
	}
	return common.HexToAddress(trimmed), nil
}

func parseInt(field, raw string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if trimmed == "" {
		return new(big.Int), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, &malformedError{msg: fmt.Sprintf("invalid %s %q", field, raw)}
	}
	return value, nil
}
