package cache

const (
	KeyOrderStatus     = "order_status:%d"
	KeyIdemOrderCreate = "idem:order_create:%d:%s"
)
