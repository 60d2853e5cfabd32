package workspace

import "path"

const (
	DirChats          = "chats"
	DirConfig         = "config"
	DirJoinRequests   = "join_requests"
	DirFriendRequests = "friend_requests"

	// ConfigPath is written last during provisioning and marks a complete
	// workspace.
	ConfigPath = "config/user.json"

	placeholder = ".keep"
)

// Dirs lists the directories every workspace carries.
var Dirs = []string{DirChats, DirConfig, DirJoinRequests, DirFriendRequests}

func RoomDir(localName string) string {
	return path.Join(DirChats, localName)
}

func RoomInfoPath(localName string) string {
	return path.Join(DirChats, localName, "info.json")
}

func RoomMembersPath(localName string) string {
	return path.Join(DirChats, localName, "members.json")
}

func RoomMessagesPath(localName string) string {
	return path.Join(DirChats, localName, "messages.json")
}

func JoinRequestPath(id string) string {
	return path.Join(DirJoinRequests, id+".json")
}

func FriendRequestPath(id string) string {
	return path.Join(DirFriendRequests, id+".json")
}

// IsPlaceholder reports whether a directory entry is the layout marker
// rather than a resource.
func IsPlaceholder(name string) bool {
	return name == placeholder
}
