package stats

import "time"

//解析事件
type ResolveEvent struct {
	ShortLink  string
	Method     string //命中的解析方法，失败时是收尾标记
	Success    bool
	DurationMS int64     //整条级联的耗时
	IP         string    //请求方IP
	ResolvedAt time.Time //解析时间
}

// Collector 收集器接口（方便后续换 Kafka）
type Collector interface {
	Collect(event ResolveEvent)
	Close()
}

// ChannelCollector 基于 channel 的收集器
type ChannelCollector struct {
	ch     chan ResolveEvent
	closed bool
}

func NewChannelCollector(bufferSize int) *ChannelCollector {
	return &ChannelCollector{
		ch:     make(chan ResolveEvent, bufferSize),
		closed: false,
	}
}

func (c *ChannelCollector) Collect(event ResolveEvent) {
	if c.closed {
		return
	}
	select {
	case c.ch <- event:
	default:
		// 通道满了，丢弃
	}
}

func (c *ChannelCollector) Events() <-chan ResolveEvent {
	return c.ch
}
func (c *ChannelCollector) Close() {
	c.closed = true
	close(c.ch)
}
