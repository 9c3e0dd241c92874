package raft

// RPCType names one of the two Raft-family RPCs. It is exported so
// transport implementations (transport/http, transport/local) can stay
// agnostic of payload shape and dispatch purely on type.
type RPCType string

const (
	RPCAppendEntries RPCType = "AppendEntries"
	RPCRequestVote   RPCType = "RequestVote"
)

// RequestVoteArgs is the payload of a RequestVote RPC.
type RequestVoteArgs struct {
	Term         uint64
	CandidateID  string
	LastLogIndex uint64
	LastLogTerm  uint64
}

// RequestVoteReply is the response to a RequestVote RPC.
type RequestVoteReply struct {
	Term        uint64
	VoteGranted bool
}

// AppendEntriesArgs is the payload of an AppendEntries RPC. Entries is
// empty for a heartbeat.
type AppendEntriesArgs struct {
	Term         uint64
	LeaderID     string
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []LogEntry
	LeaderCommit uint64
}

// AppendEntriesReply is the response to an AppendEntries RPC.
type AppendEntriesReply struct {
	Term    uint64
	Success bool
}
