package fragment

// Names of the built-in fragment types.
const (
	Platform     = "Platform"
	DevEnv       = "DevEnv"
	Optimization = "Optimization"
	OutputType   = "OutputType"
)

// Defaults are the fragment tables every run starts with.
var Defaults = []Spec{
	{
		Name: Platform,
		Values: []ValueSpec{
			{Name: "win32", Bits: 1 << 0},
			{Name: "win64", Bits: 1 << 1},
			{Name: "linux", Bits: 1 << 2},
			{Name: "mac", Bits: 1 << 3},
			{Name: "android", Bits: 1 << 4},
			{Name: "ios", Bits: 1 << 5},
			{Name: "x64", Bits: 1 << 1, Tolerant: true},
			{Name: "windows", Bits: 1<<0 | 1<<1, Composite: true},
		},
	},
	{
		Name: DevEnv,
		Values: []ValueSpec{
			{Name: "vs2019", Bits: 1 << 0},
			{Name: "vs2022", Bits: 1 << 1},
			{Name: "make", Bits: 1 << 2},
			{Name: "xcode", Bits: 1 << 3},
			{Name: "vs2017", Bits: 1 << 4, Obsolete: true},
		},
	},
	{
		Name: Optimization,
		Values: []ValueSpec{
			{Name: "debug", Bits: 1 << 0},
			{Name: "release", Bits: 1 << 1},
			{Name: "retail", Bits: 1 << 2},
			{Name: "all", Bits: 1<<0 | 1<<1 | 1<<2, Composite: true},
		},
	},
	{
		Name: OutputType,
		Values: []ValueSpec{
			{Name: "lib", Bits: 1 << 0},
			{Name: "dll", Bits: 1 << 1},
		},
	},
}

// RegisterDefaults adds the built-in fragment tables to r.
func RegisterDefaults(r *Registry) {
	for _, spec := range Defaults {
		r.MustRegister(spec)
	}
}
