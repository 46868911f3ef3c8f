package cmd

import "time"

const (
	DEF_RPC_TIMEOUT = 5 * time.Second
	DEF_HISTORY_LEN = 20
)

const DESCRIPTION = `
autotap replays a pre-computed touch timeline on a phone or tablet,
keeping every group of touches in step with the song's clock. The
timing can be nudged earlier or later while the song plays.
`

const (
	PlayDescription = `The play command connects to the device, waits for you
to press Enter, taps the screen centre to start the song and then
plays the timeline. While playing, type + to shift later input
earlier, - to shift it later and 0 to reset the shift.

The base delay is read from the chart given with --chart, from
--earliest, or from the timeline's metadata, in that order.

Example:
        autotap play --chart song.aff song.json
        autotap play --dry-run sftp://pi@raspberrypi/charts/song.json

`
	DelayDescription = `The delay command scans a chart for its earliest note
and prints the base delay playback would use.

Example:
        autotap delay song.aff

`
	InspectDescription = `The inspect command loads a timeline, runs the configured
or given script over it and prints what would be played. With
--out the resulting timeline is written as JSON, so a script can
be checked once and its output played directly.

Example:
        autotap inspect song.json
        autotap inspect --script skip-arcs.js --out song.ground.json song.json

`
	CoordDescription = `The coord command maps a play-field position to device
pixels with the configured corners. Positions run from 0 to 1,
left to right and bottom to top. Without arguments it prints
the configured corners.

Example:
        autotap coord
        autotap coord 0.5 0.5
        autotap coord --lane 2 --lanes 4

`
	CalibrateDescription = `The calibrate command shifts the running session.
+ or advance moves later input earlier, - or retreat moves it later
and 0 or reset clears the shift.

Example:
        autotap calibrate +
        autotap calibrate reset

`
	StatusDescription = `The status command shows the progress and offset of
the running session. With --watch it follows the session until it
ends.

Example:
        autotap status --watch

`
	HistoryDescription = `The history command lists past sessions, most recent
first.

Example:
        autotap history -n 5
        autotap history --flush

`
	ConfigDescription = `The config command prints the effective configuration.
"autotap config path" prints the file location and "autotap config
init" writes the defaults there.

Example:
        autotap config
        autotap config init

`
)
