package chatrelay

// Version is overwritten at build time with -ldflags "-X github.com/a-h/chatrelay.Version=...".
var Version = "devel"
