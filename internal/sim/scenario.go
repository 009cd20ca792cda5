package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Step operations.
const (
	OpFund0       = "fund0"
	OpFund1       = "fund1"
	OpSeed        = "seed"
	OpSwap0       = "swap0"
	OpSubmit1     = "submit1"
	OpDeliver     = "deliver"
	OpProvide0    = "provide0"
	OpProvide1    = "provide1"
	OpIncrease0   = "increase0"
	OpBurn        = "burn"
	OpClaim       = "claim"
	OpFundRewards = "fund_rewards"
	OpSetRate     = "set_rate"
	OpReclaim     = "reclaim"
	OpAdvance     = "advance"
)

// Scenario is a scripted sequence of pool operations.
type Scenario struct {
	Start       uint64            `json:"start"`
	Accounts    map[string]string `json:"accounts"`
	StopOnError bool              `json:"stop_on_error"`
	Steps       []Step            `json:"steps"`
}

// Step is one operation. Public amounts are decimal strings; confidential
// amounts are plain integers.
type Step struct {
	Op         string `json:"op"`
	User       string `json:"user,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Amount1    uint64 `json:"amount1,omitempty"`
	MinOut     string `json:"min_out,omitempty"`
	TickLower  int32  `json:"tick_lower,omitempty"`
	TickUpper  int32  `json:"tick_upper,omitempty"`
	TokenID    string `json:"token_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	DeadlineIn uint64 `json:"deadline_in,omitempty"`
	Seconds    uint64 `json:"seconds,omitempty"`
	ExpectErr  string `json:"expect_error,omitempty"`
}

// LoadScenario reads a scenario from a JSON file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return Scenario{}, fmt.Errorf("scenario has no steps")
	}
	return sc, nil
}

func (s Scenario) resolve(name string) (common.Address, error) {
	if name == "" {
		return common.Address{}, fmt.Errorf("account required")
	}
	if addr, ok := s.Accounts[name]; ok {
		name = addr
	}
	if !common.IsHexAddress(name) {
		return common.Address{}, fmt.Errorf("unknown account %q", name)
	}
	return common.HexToAddress(name), nil
}

func parseAmount(field, value string) (*uint256.Int, error) {
	if strings.TrimSpace(value) == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}
