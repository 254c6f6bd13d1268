package texts

// User-facing strings. Handlers format these with fmt.Sprintf, so keep the
// verb order stable when editing.
const (
	MsgNotAdmin          = "Who dis non-admin telling me what to do?"
	MsgNotDev            = "This is a developer restricted command. You do not have permissions to run this."
	MsgNoAccess          = "You don't have access to use this."
	MsgMissingPerm       = "You lack the permission: %s"
	MsgBotNotAdmin       = "I'm not admin here!"
	MsgBotCantRestrict   = "I can't restrict people here!\nMake sure I'm admin and can restrict users."
	MsgBotCantDelete     = "I can't delete messages here!\nMake sure I'm admin and can delete other user's messages."
	MsgBotCantPin        = "I can't pin messages here!\nMake sure I'm admin and can pin messages."
	MsgBotCantPromote    = "I can't promote/demote people here!\nMake sure I'm admin and can appoint new admins."
	MsgAnonProveIdentity = "Seems like you're anonymous, click the button below to prove your identity"
	MsgAnonNotAdmin      = "You aren't admin."
	MsgAnonNotForYou     = "This isn't for ya"
	MsgGroupOnly         = "This command is meant to be used in a group, not in PM"

	MsgFloodTriggered    = "Beep Boop! Boop Beep!\n%s!"
	MsgFloodDisabledAuto = "I can't restrict people here, give me permissions first! Until then, I'll disable anti-flood."
	MsgFloodLimitTooLow  = "Antiflood must be either 0 (disabled) or a number greater than 3!"
	MsgFloodDisabled     = "Antiflood has been disabled."
	MsgFloodSet          = "Successfully updated anti-flood limit to %d!"
	MsgFloodNotEnforcing = "I'm not enforcing any flood control here!"
	MsgFloodCurrent      = "I'm currently restricting members after %d consecutive messages."
	MsgFloodModeUnknown  = "I only understand ban/kick/mute/tban/tmute!"
	MsgFloodModeNeedTime = "You tried to set a timed flood action but didn't give a time; try something like 4m, 3h, 6d or 5w."
	MsgFloodModeSet      = "Exceeding consecutive flood limit will result in %s!"
	MsgFloodUnmuted      = "Unmuted by %s."

	MsgRaidBounds        = "You can only set time between 5 minutes and 1 day"
	MsgRaidBadTime       = "Unknown time given, give me something like 5m or 1h"
	MsgRaidEnabled       = "Raid mode has been Enabled for %s."
	MsgRaidDisabled      = "Raid mode has been Disabled, members that join will no longer be kicked."
	MsgRaidAutoDisabled  = "Raid mode has been automatically disabled!"
	MsgRaidTimeCurrent   = "Raid mode is currently set to %s\nWhen toggled, the raid mode will last for %s then turn off automatically"
	MsgRaidActionCurrent = "Raid action time is currently set to %s\nWhen toggled, the members that join will be temp banned for %s"

	MsgVerifyPrompt        = "%s, click the button below to prove you're human.\nYou have %d seconds."
	MsgVerifyCaptchaPrompt = "Welcome %s. Click the correct button to get unmuted!\nYou got %d seconds for this."
	MsgVerifyHuman         = "Yeet! You're a human, unmuted!"
	MsgVerifyWrongAnswer   = "Wrong answer"
	MsgVerifyNotForYou     = "You're not allowed to do this!"
	MsgVerifyKicked        = "*kicks user*\nThey can always rejoin and try."
	MsgVerifyKickedFresh   = "%s was kicked as they failed to verify themselves"
	MsgVerifyCaptchaFailed = "%s failed the captcha and was kicked."

	MsgWelcomeOn        = "Okay! I'll greet members when they join."
	MsgWelcomeOff       = "I'll not welcome anyone."
	MsgOnOffOnly        = "I understand 'on/yes' or 'off/no' only!"
	MsgWelcomeMuteOff   = "I will no longer mute people on joining this chat."
	MsgWelcomeMuteSoft  = "I will now restrict new members from sending media for 24 hours."
	MsgWelcomeMuteTight = "I will now mute people when they join until they prove they're not a bot.\nThey will have %d seconds before they get kicked."
	MsgWelcomeMuteOpts  = "Please enter off/no/soft/strong/captcha!"
	MsgCleanWelcomeOn   = "I'll try to delete old welcome messages!"
	MsgCleanWelcomeOff  = "I won't delete old welcome messages."

	MsgDisabled          = "Disabled the use of %s command!"
	MsgEnabled           = "Enabled the use of %s command!"
	MsgCantDisable       = "This command can't be disabled"
	MsgNotDisabled       = "Is that even disabled?"
	MsgNothingToDisable  = "What should I disable?"
	MsgNothingToEnable   = "What should I enable?"
	MsgNoDisabled        = "No commands are disabled!"
	MsgDisabledList      = "The following commands are currently restricted:\n%s"
	MsgToggleableList    = "The following commands are toggleable:\n%s"
	MsgNoToggleable      = "No commands can be disabled."
	MsgLogChannelSet     = "Successfully set log channel!"
	MsgLogChannelUnset   = "Log channel has been un-set."
	MsgLogChannelNone    = "No log channel has been set for this group!"
	MsgLogChannelGone    = "This log channel has been deleted - unsetting."
	MsgLogChannelHowTo   = "The steps to set a log channel are:\n - add me to the desired channel\n - send /setlog to the channel\n - forward the /setlog to the group"
	MsgApproved          = "%s is now approved, they'll be ignored by automated admin actions like antiflood."
	MsgUnapproved        = "%s is no longer approved."
	MsgNoApprovals       = "No users are approved in this chat."
	MsgErrorNotice       = "Sorry, I ran into an error!\nError: %s\nThis incident has been logged. No further action is required."
	MsgThatIsAChat       = "That...is a chat."
	MsgNotThatWay        = "This does not work that way."
	MsgBlueCleanOn       = "I'll now delete lookalike commands nobody handles."
	MsgBlueCleanOff      = "I'll leave lookalike commands alone."
	MsgBlueIgnored       = "Ignoring %s from blue-text cleanup."
	MsgBlueUnignored     = "No longer ignoring %s."
	MsgBlueNothing       = "Give me a command token to work with."
	MsgMigrated          = "Chat records migrated."
	MsgRanksAlready      = "This member already holds that rank"
	MsgRankPromoted      = "Successfully promoted %s!"
	MsgRankDemoted       = "Successfully removed %s's rank."
	MsgRankMissing       = "This user has no rank to remove."
)
