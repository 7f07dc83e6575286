package xtid

const (
	additionalRandomNumber = 3
	defaultKeyword         = "obfiowerehiring"

	// epochOffsetMillis is 2023-05-01T07:00:00Z, the zero point of the time field.
	epochOffsetMillis = 1682924400000

	// totalTime is the animation length in ms the frame time is normalized against.
	totalTime = 4096.0

	// maxBisectIterations bounds the cubic root-finding loop.
	maxBisectIterations = 100

	// frameSetByte is the key byte selecting one of the four loading animations.
	frameSetByte = 5
	frameCount   = 4
	rowModulus   = 16

	// pathPrefixLen is the length of the "M 10,30 C" move-to prefix of a frame path.
	pathPrefixLen = 9

	// minFrameRow is color-from(3) + color-to(3) + rotation(1) + 4 curve values.
	minFrameRow = 11
)

const (
	// DefaultHomeURL is the page carrying the verification key and loading frames.
	DefaultHomeURL = "https://x.com"

	// DefaultMigrateURL is the migration form target when the form omits its action.
	DefaultMigrateURL = "https://x.com/x/migrate"

	// DefaultOnDemandURLFormat expands the ondemand.s chunk hash into its bundle URL.
	DefaultOnDemandURLFormat = "https://abs.twimg.com/responsive-web/client-web/ondemand.s.%sa.js"

	// HeaderName is the request header the token is sent in.
	HeaderName = "x-client-transaction-id"

	verificationMetaName = "twitter-site-verification"
	frameIDPrefix        = "loading-x-anim"
)
