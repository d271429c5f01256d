package timecodec

// Zone rules are compiled into the binary so Europe/Stockholm resolves on hosts without /usr/share/zoneinfo.
import _ "time/tzdata"
