package privilege

// Level orders the global privilege tiers. Higher always implies every
// power of the tiers below it.
type Level int

const (
	Member Level = iota
	Whitelist
	ChatAdmin
	Support
	Sudo
	Owner
	Developer
)

func (l Level) String() string {
	switch l {
	case Developer:
		return "developer"
	case Owner:
		return "owner"
	case Sudo:
		return "sudo"
	case Support:
		return "support"
	case ChatAdmin:
		return "admin"
	case Whitelist:
		return "whitelist"
	default:
		return "member"
	}
}

// AdminPerm names a Telegram admin right a command may additionally
// require from chat admins. Global staff bypass the per-right check.
type AdminPerm string

const (
	PermNone       AdminPerm = ""
	PermRestrict   AdminPerm = "can_restrict_members"
	PermDelete     AdminPerm = "can_delete_messages"
	PermChangeInfo AdminPerm = "can_change_info"
	PermInvite     AdminPerm = "can_invite_users"
	PermPin        AdminPerm = "can_pin_messages"
	PermPromote    AdminPerm = "can_promote_members"
)

// Requirement is the access rule attached to a command registration.
type Requirement struct {
	Level Level
	Perm  AdminPerm
}
