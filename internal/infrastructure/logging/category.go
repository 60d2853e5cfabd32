package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	Internal        Category = "Internal"
	BlobStore       Category = "BlobStore"
	Cache           Category = "Cache"
	Workflow        Category = "Workflow"
	Broadcast       Category = "Broadcast"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
)

const (
	Startup         SubCategory = "Startup"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"
	Retry           SubCategory = "Retry"
	Provisioning    SubCategory = "Provisioning"
	Decode          SubCategory = "Decode"
	Conflict        SubCategory = "Conflict"
	Publish         SubCategory = "Publish"
	Lifecycle       SubCategory = "Lifecycle"
	Membership      SubCategory = "Membership"
	Authorization   SubCategory = "Authorization"
)

const (
	AppName      ExtraKey = "AppName"
	Owner        ExtraKey = "Owner"
	Path         ExtraKey = "Path"
	RoomID       ExtraKey = "RoomID"
	RequestID    ExtraKey = "RequestID"
	Attempt      ExtraKey = "Attempt"
	Delay        ExtraKey = "Delay"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	Latency      ExtraKey = "Latency"
	ClientIp     ExtraKey = "ClientIp"
	ErrorMessage ExtraKey = "ErrorMessage"
)
