package routing

// User-facing notices for the recoverable cannot-deliver branches.
const (
	noticeGroupGoneLine1 = "&cThe group channel you had selected no longer exists."
	noticeGroupGoneLine2 = "&cPick another channel before chatting again."

	noticeNotOnline        = "&cThat player is not online."
	noticePMDisabledSender = "&cPrivate messages are disabled on your server."
	noticePMDisabledTarget = "&cPrivate messages are disabled on the recipient's server."
	noticeChatFrozen       = "&cChat is currently frozen."
)
