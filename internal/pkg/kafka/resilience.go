package kafka

import (
	"errors"
	log "log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen 熔断器打开期间直接拒绝调用
var ErrCircuitOpen = errors.New("下游暂不可用，熔断器已打开")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Policy 对下游调用统一施加「有限重试 + 熔断」策略。
// 熔断状态机：closed --连续失败达阈值--> open --冷却到期--> half-open
// half-open 放行一次探测，成功回到 closed，失败回到 open。
type Policy struct {
	MaxRetries       int           // 单次调用内的重试上限
	BaseBackoff      time.Duration // 首次重试退避，之后逐次翻倍
	FailureThreshold int           // 连续失败多少次后熔断
	OpenTimeout      time.Duration // open 状态的冷却时长

	mu           sync.Mutex
	state        breakerState
	failureCount int
	openedAt     time.Time
}

// NewPolicy 默认参数：重试 3 次、100ms 起步退避、连续 5 次失败熔断 30s
func NewPolicy() *Policy {
	return &Policy{
		MaxRetries:       3,
		BaseBackoff:      100 * time.Millisecond,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Execute 执行一次下游调用。调用方视角只有成功 / 最终失败 / 熔断拒绝三种结果。
func (p *Policy) Execute(op func() error) error {
	if !p.allow() {
		return ErrCircuitOpen
	}

	backoff := p.BaseBackoff
	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		if err = op(); err == nil {
			p.recordSuccess()
			return nil
		}
	}

	p.recordFailure()
	return err
}

func (p *Policy) allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(p.openedAt) >= p.OpenTimeout {
			p.state = stateHalfOpen
			log.Info("circuit breaker half-open, probing downstream")
			return true
		}
		return false
	default: // half-open：已有一次探测在途，其余请求拒绝
		return false
	}
}

func (p *Policy) recordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateHalfOpen {
		log.Info("circuit breaker closed, downstream recovered")
	}
	p.state = stateClosed
	p.failureCount = 0
}

func (p *Policy) recordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateHalfOpen {
		p.trip()
		return
	}

	p.failureCount++
	if p.failureCount >= p.FailureThreshold {
		p.trip()
	}
}

func (p *Policy) trip() {
	p.state = stateOpen
	p.openedAt = time.Now()
	p.failureCount = 0
	log.Warn("circuit breaker open", "cooldown", p.OpenTimeout)
}
