package entry

type RecordType uint8

const (
	RecordPlace RecordType = iota + 1
	RecordReduce
	RecordPlaceMultiple
	RecordCancelAll
	RecordDeposit
	RecordWithdraw
	RecordCollectFees
)

func (t RecordType) String() string {
	switch t {
	case RecordPlace:
		return "place"
	case RecordReduce:
		return "reduce"
	case RecordPlaceMultiple:
		return "place_multiple"
	case RecordCancelAll:
		return "cancel_all"
	case RecordDeposit:
		return "deposit"
	case RecordWithdraw:
		return "withdraw"
	case RecordCollectFees:
		return "collect_fees"
	default:
		return "unknown"
	}
}

// Record is one committed command. Block and Time are the clock the command
// ran under, so replay sees the same expiries.
type Record struct {
	Type  RecordType
	Seq   uint64
	Block uint32
	Time  uint32
	Data  []byte
}

func NewRecord(t RecordType, seq uint64, block, ts uint32, data []byte) *Record {
	return &Record{
		Type:  t,
		Seq:   seq,
		Block: block,
		Time:  ts,
		Data:  data,
	}
}
