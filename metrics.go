package raft

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of prometheus collectors a Node reports to. It
// purely observes state the core already computed; nothing here gates a
// protocol decision. With a nil Options.Registerer the collectors are
// still updated but registered nowhere.
type Metrics struct {
	term        prometheus.Gauge
	commitIndex prometheus.Gauge
	lastApplied prometheus.Gauge
	role        *prometheus.GaugeVec
	rpcTotal    *prometheus.CounterVec
	appliedLog  prometheus.Counter
}

// NewMetrics registers the node's collectors against reg, labeling every
// series with the node id so a single registry can host a whole cluster
// of in-process nodes.
func NewMetrics(reg prometheus.Registerer, nodeID string) *Metrics {
	labels := prometheus.Labels{"node_id": nodeID}
	m := &Metrics{
		term: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "raft_current_term",
			Help:        "Current term observed by this node.",
			ConstLabels: labels,
		}),
		commitIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "raft_commit_index",
			Help:        "Highest log index known to be committed.",
			ConstLabels: labels,
		}),
		lastApplied: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "raft_last_applied",
			Help:        "Highest log index applied to the state machine.",
			ConstLabels: labels,
		}),
		role: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "raft_role",
			Help:        "1 for the currently active role, 0 otherwise.",
			ConstLabels: labels,
		}, []string{"role"}),
		rpcTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "raft_rpc_total",
			Help:        "RPCs handled or issued, by type and result.",
			ConstLabels: labels,
		}, []string{"type", "result"}),
		appliedLog: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "raft_applied_log_total",
			Help:        "Log entries applied to the state machine.",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.term, m.commitIndex, m.lastApplied, m.role, m.rpcTotal, m.appliedLog)
	}
	return m
}

func (m *Metrics) observeRole(r roleKind) {
	if m == nil {
		return
	}
	for _, rk := range []roleKind{RoleIdle, RoleFollower, RoleCandidate, RoleLeader} {
		v := 0.0
		if rk == r {
			v = 1.0
		}
		m.role.WithLabelValues(rk.String()).Set(v)
	}
}

func (m *Metrics) observeTerm(term uint64) {
	if m == nil {
		return
	}
	m.term.Set(float64(term))
}

func (m *Metrics) observeCommit(commitIndex, lastApplied uint64) {
	if m == nil {
		return
	}
	m.commitIndex.Set(float64(commitIndex))
	m.lastApplied.Set(float64(lastApplied))
}

func (m *Metrics) observeApplied() {
	if m == nil {
		return
	}
	m.appliedLog.Inc()
}

func (m *Metrics) observeRPC(rpcType RPCType, result string) {
	if m == nil {
		return
	}
	m.rpcTotal.WithLabelValues(string(rpcType), result).Inc()
}
