package chat

// Operation names understood by the task runner. The dispatcher carries
// them verbatim as routing keys.
const (
	OpSendPushNotifications = "sendPushNotifications"
	OpRepairSenderSnapshots = "repairSenderSnapshots"
)

// NotifyTask is the payload scheduled by a post with notify set.
type NotifyTask struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Message        string `json:"message"`
}

// RepairTask is the payload scheduled by a profile update.
type RepairTask struct {
	UserID string `json:"userId"`
}
