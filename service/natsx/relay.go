package natsx

import (
	"encoding/json"
	"time"

	"Chatty/config"
	"Chatty/logger"
	"Chatty/service/chat"
	"Chatty/tools/errs"
	"Chatty/tools/safe"

	"github.com/nats-io/nats.go"
)

// SubjectDeliver 跨节点投递主题；全部 gateway 订阅，发布方自弃。
const SubjectDeliver = "chatty.deliver"

// Relay 把本节点的消息投递复制到其它 gateway 节点。
// 每个会话只属于一个节点，因此“每会话恰好一份”在多节点下仍成立。
type Relay struct {
	nc  *nats.Conn
	gw  string
	sub *nats.Subscription
}

func New(cfg config.NatsConfig, gatewayID string) (*Relay, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("chatty-gateway-"+gatewayID),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect", "url", cfg.URL)
	}
	return &Relay{nc: nc, gw: gatewayID}, nil
}

// PublishDeliver 发布一次投递信封，fire-and-forget。
func (r *Relay) PublishDeliver(env chat.DeliverEnvelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return errs.Wrap(err)
	}
	return r.nc.Publish(SubjectDeliver, b)
}

// Subscribe 开始消费其它节点的信封；h 在独立 goroutine 里执行。
func (r *Relay) Subscribe(h func(chat.DeliverEnvelope)) error {
	sub, err := r.nc.Subscribe(SubjectDeliver, func(m *nats.Msg) {
		var env chat.DeliverEnvelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			logger.Errorf("[natsx] bad envelope: %v", err)
			return
		}
		if env.OriginGw == r.gw {
			return // 本节点发布的，已在本地投递过
		}
		safe.Go(func() { h(env) })
	})
	if err != nil {
		return errs.Wrap(err)
	}
	r.sub = sub
	return nil
}

func (r *Relay) Close() {
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}
	if r.nc != nil {
		r.nc.Close()
	}
}
