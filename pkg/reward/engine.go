package reward

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/chainpoint-network/calendar-core/pkg/block"
	"github.com/chainpoint-network/calendar-core/pkg/bus"
	"github.com/chainpoint-network/calendar-core/pkg/metrics"
	"github.com/chainpoint-network/calendar-core/pkg/tokensvc"
)

// Engine consumes reward messages and records their outcome.
type Engine struct {
	store   *block.Store
	bus     *bus.Bus
	tokens  *tokensvc.Client
	stackID string
	logger  *log.Logger
}

// New constructs a reward Engine for stackID.
func New(store *block.Store, b *bus.Bus, tokens *tokensvc.Client, stackID string) *Engine {
	return &Engine{
		store:   store,
		bus:     b,
		tokens:  tokens,
		stackID: stackID,
		logger:  log.New(log.Writer(), "[Reward] ", log.LstdFlags),
	}
}

// Subscribe registers the reward handler on the reward subject.
func (e *Engine) Subscribe() (*bus.Subscription, error) {
	return e.bus.Subscribe(bus.TypeReward, e.handle)
}

// handle always returns nil so the bus acks the message regardless of
// transfer outcome; failures are logged, never retried (spec §4.10).
func (e *Engine) handle(ctx context.Context, msg *bus.Message) error {
	var m Message
	if err := msg.Decode(&m); err != nil {
		e.logger.Printf("decode reward message: %v", err)
		return nil
	}

	outcome := "ok"

	nodeTx, err := e.tokens.Transfer(ctx, m.Node.Address, m.Node.Amount)
	if err != nil {
		e.logger.Printf("transfer to node %s failed: %v", m.Node.Address, err)
		outcome = "error"
	}

	var coreTx string
	if m.Core != nil {
		coreTx, err = e.tokens.Transfer(ctx, m.Core.Address, m.Core.Amount)
		if err != nil {
			e.logger.Printf("transfer to core %s failed: %v", m.Core.Address, err)
			outcome = "error"
		}
	}
	metrics.RewardsPaid.WithLabelValues(outcome).Inc()

	dataID, dataVal := rewardBlockFields(m, nodeTx, coreTx)

	if _, err := e.store.Append(ctx, block.NewBlock{
		StackID: e.stackID,
		Type:    block.TypeReward,
		DataID:  dataID,
		DataVal: dataVal,
	}); err != nil {
		e.logger.Printf("append reward block: %v", err)
	}

	return nil
}

// rewardBlockFields builds the reward block's dataId (`nodeTx[:coreTx]`)
// and dataVal (`nodeAddr:nodeAmount[:coreAddr:coreAmount]`) per spec §4.10.
func rewardBlockFields(m Message, nodeTx, coreTx string) (dataID, dataVal string) {
	dataID = nodeTx
	dataVal = fmt.Sprintf("%s:%s", m.Node.Address, strconv.FormatInt(m.Node.Amount, 10))
	if m.Core != nil {
		dataID = strings.Join([]string{nodeTx, coreTx}, ":")
		dataVal = fmt.Sprintf("%s:%s:%s:%s", m.Node.Address, strconv.FormatInt(m.Node.Amount, 10),
			m.Core.Address, strconv.FormatInt(m.Core.Amount, 10))
	}
	return dataID, dataVal
}
