package domain

// OrderType mirrors the MetaTrader 5 ORDER_TYPE_* codes.
type OrderType int

const (
	OrderTypeBuy       OrderType = 0
	OrderTypeSell      OrderType = 1
	OrderTypeBuyLimit  OrderType = 2
	OrderTypeSellLimit OrderType = 3
	OrderTypeBuyStop   OrderType = 4
	OrderTypeSellStop  OrderType = 5
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeBuy:
		return "BUY"
	case OrderTypeSell:
		return "SELL"
	case OrderTypeBuyLimit:
		return "BUY_LIMIT"
	case OrderTypeSellLimit:
		return "SELL_LIMIT"
	case OrderTypeBuyStop:
		return "BUY_STOP"
	case OrderTypeSellStop:
		return "SELL_STOP"
	default:
		return "UNKNOWN"
	}
}

// TradeAction mirrors TRADE_ACTION_*.
type TradeAction int

const (
	TradeActionDeal    TradeAction = 1 // immediate execution
	TradeActionPending TradeAction = 5
)

type OrderTime int

const OrderTimeGTC OrderTime = 0

type OrderFilling int

const OrderFillingFOK OrderFilling = 0

// Trade server return codes.
const (
	RetcodeDone           = 10009
	RetcodeInvalidRequest = 10013
	RetcodeInvalidVolume  = 10014
)

const (
	OrderDeviation   = 20
	OrderMagic       = 123456
	SignalComment    = "TradingView Auto-Signal"
	AutoCloseComment = "Auto-close position"
)

// OrderRequest is the trade request handed to the terminal.
type OrderRequest struct {
	Action      TradeAction  `json:"action"`
	Symbol      string       `json:"symbol"`
	Volume      float64      `json:"volume"`
	Type        OrderType    `json:"type"`
	Price       float64      `json:"price"`
	SL          float64      `json:"sl"`
	TP          float64      `json:"tp"`
	Deviation   int          `json:"deviation"`
	Magic       int64        `json:"magic"`
	Comment     string       `json:"comment"`
	TypeTime    OrderTime    `json:"type_time"`
	TypeFilling OrderFilling `json:"type_filling"`
	Position    uint64       `json:"position,omitempty"`
}

type OrderResult struct {
	Retcode int     `json:"retcode"`
	Comment string  `json:"comment"`
	Order   uint64  `json:"order"`
	Deal    uint64  `json:"deal"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
}

func (r *OrderResult) Done() bool {
	return r != nil && r.Retcode == RetcodeDone
}
