package ws

type WindowStyle uint32

// Window style constants
const (
	Overlapped       WindowStyle = 0x00000000
	Popup            WindowStyle = 0x80000000
	Child            WindowStyle = 0x40000000
	Minimize         WindowStyle = 0x20000000
	Visible          WindowStyle = 0x10000000
	Disabled         WindowStyle = 0x08000000
	ClipSiblings     WindowStyle = 0x04000000
	ClipChildren     WindowStyle = 0x02000000
	Maximize         WindowStyle = 0x01000000
	Caption          WindowStyle = 0x00C00000
	Border           WindowStyle = 0x00800000
	DlgFrame         WindowStyle = 0x00400000
	SysMenu          WindowStyle = 0x00080000
	ThickFrame       WindowStyle = 0x00040000
	MinimizeBox      WindowStyle = 0x00020000
	MaximizeBox      WindowStyle = 0x00010000
	OverlappedWindow             = Overlapped | Caption | SysMenu | ThickFrame | MinimizeBox | MaximizeBox
	PopupWindow                  = Popup | Border | SysMenu
)

// Has reports whether every bit of flag is set.
func (s WindowStyle) Has(flag WindowStyle) bool {
	return s&flag == flag
}
