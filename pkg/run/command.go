/*
   NVFlash - log-structured NVRAM on byte-programmable flash
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of NVFlash.

   NVFlash is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   NVFlash is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with NVFlash. If not, see <http://www.gnu.org/licenses/>.
*/

package run

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

//
const (
	prologueHeader = ""
	epilogueHeader = `
Notes:

`
)

/*
	The package initializer sets up logging based on logrus. The following
	environment variables can be used to configure logging:

		LOG_FORMAT		set to `json` for JSON logging
		LOG_FORCE_COLORS	set to non-empty for forcing colorized log entries
		LOG_METHODS		set to non-empty for including methods in log
		LOG_LEVEL		`panic`, `fatal`, `error`, `warn`, `info`, `debug`, `trace`
*/
func init() {

	log.SetOutput(os.Stdout)

	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else if os.Getenv("LOG_FORCE_COLORS") != "" {
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	}

	if os.Getenv("LOG_METHODS") != "" {
		log.SetReportCaller(true)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		l, err := log.ParseLevel(level)
		if err != nil {
			log.Errorf("invalid log level: '%s'; valid levels are: panic, "+
				"fatal, error, warn, info, debug, trace", level)
		} else {
			log.SetLevel(l)
		}
	}
}

//
var (
	UnderTest bool
)

// DieOnError exits the running process if e is not nil. The error gets logged.
func DieOnError(e error) {
	if e != nil {
		fmt.Printf("%v\n", e)
		if UnderTest {
			panic(e.Error())
		}
		os.Exit(1)
	}
}

// Die exits the running process, while logging the given message.
func Die(msg string, params ...interface{}) {
	err := fmt.Sprintf(msg, params...)
	if UnderTest {
		fmt.Print(err)
		panic(err)
	}
	fmt.Println(strings.TrimRight(err, "\n"))
	os.Exit(1)
}

/*
	NewCommand creates a base command instance, wrapping a new Cobra command.
	The	exec function is invoked when the command's Execute method is called.
	Each command gets its own Viper instance, so settings of different commands
	never get mixed up.
*/
func NewCommand(use, short, long, helpPrologue, helpEpilogue string,
	exec func() error) *Command {

	ret := Command{
		cmd: &cobra.Command{
			Use:   use,
			Short: short,
			Long:  long,
			RunE: func(*cobra.Command, []string) error {
				return exec()
			},
			SilenceErrors:         true,
			SilenceUsage:          true,
			DisableFlagsInUseLine: true,
		},
		viper:        viper.New(),
		settings:     map[string]*setting{},
		helpPrologue: helpPrologue,
		helpEpilogue: helpEpilogue,
	}
	ret.helpFunc = ret.cmd.HelpFunc()
	ret.cmd.SetHelpFunc(ret.help)
	return &ret
}

/*
	Command is a wrapper around Cobra & Viper. A setting can come from a
	command line flag or an environment variable, with the flag taking
	precedence. Required settings that are missing from both yield an error
	message naming the flag and the variable.
*/
type Command struct {
	//
	cmd      *cobra.Command
	viper    *viper.Viper
	settings map[string]*setting
	//
	Args []string
	//
	helpPrologue string
	helpEpilogue string
	helpFunc     func(*cobra.Command, []string)
}

//
func (c *Command) help(cmd *cobra.Command, args []string) {
	if c.helpPrologue != "" {
		fmt.Fprintln(cmd.OutOrStdout(), prologueHeader+c.helpPrologue)
	}
	if c.helpFunc != nil {
		c.helpFunc(cmd, args)
	}
	if c.helpEpilogue != "" {
		fmt.Fprintln(cmd.OutOrStdout(), epilogueHeader+c.helpEpilogue)
	} else {
		fmt.Fprintln(cmd.OutOrStdout())
	}
}

/*
	Execute invokes the exec function that was set on this command when it was
	created. If args is of non-zero length, it overrides os.Args.
*/
func (c *Command) Execute(args []string) error {
	if len(args) > 0 {
		c.cmd.SetArgs(args)
	}
	return c.cmd.Execute()
}

/*
	AddSetting adds a setting to this command. Target is a pointer to the
	variable the setting is bound to; supported are *string, *int, *uint32,
	*bool, and *[]string. Flag is the long (double-dash) command line flag,
	short its single-dash version, and env the environment variable that may
	carry the setting. def is the default value, nil meaning the zero value.
	Required settings do not take a default.
*/
func (c *Command) AddSetting(target interface{}, flag, short, env string,
	def interface{}, help string, required bool) {

	s := &setting{flag: flag, short: short, env: env, required: required,
		target: target}
	c.settings[flag] = s

	log.Tracef("add setting: flag=%s, env=%s, type=%T", flag, env, target)

	if required && def != nil {
		Die("required setting '%s' does not take a default value", flag)
	}

	if env != "" {
		help = fmt.Sprintf("%s (%s)", help, env)
	}

	flags := c.cmd.Flags()
	if err := s.register(flags, def, help); err != nil {
		Die("%v", err)
	}

	c.viper.BindPFlag(flag, flags.Lookup(flag))
	if env != "" {
		c.viper.BindEnv(flag, env)
	}
}

/*
	GetSetting retrieves the setting for the provided flag and places the value
	in the variable bound to it.
*/
func (c *Command) GetSetting(flag string) (interface{}, error) {
	s, ok := c.settings[flag]
	if !ok {
		return "", fmt.Errorf("undefined setting: %s", flag)
	}
	return s.get(c.viper)
}

/*
	ParseSettings handles all settings that have been added thus far via the
	AddSetting method. Afterwards, setting values are available in the variables
	to which they were bound. This should be called in the exec function that
	was	set on this command when it was created, before any references to
	variables that are bound to settings.
*/
func (c *Command) ParseSettings() {
	for _, s := range c.settings {
		_, err := s.get(c.viper)
		DieOnError(err)
	}
	c.Args = c.cmd.Flags().Args()
}

//
type setting struct {
	flag     string
	short    string
	env      string
	required bool
	target   interface{}
}

//
func (s *setting) register(f *pflag.FlagSet, def interface{}, help string) error {

	bad := func() error {
		return fmt.Errorf("default value for setting '%s' has incorrect type", s.flag)
	}

	switch t := s.target.(type) {

	case *string:
		d, ok := orZero(def, "").(string)
		if !ok {
			return bad()
		}
		f.StringVarP(t, s.flag, s.short, d, help)

	case *int:
		d, ok := orZero(def, 0).(int)
		if !ok {
			return bad()
		}
		f.IntVarP(t, s.flag, s.short, d, help)

	case *uint32:
		var d uint32
		switch v := orZero(def, uint32(0)).(type) {
		case uint32:
			d = v
		case int:
			d = uint32(v)
		default:
			return bad()
		}
		f.Uint32VarP(t, s.flag, s.short, d, help)

	case *bool:
		d, ok := orZero(def, false).(bool)
		if !ok {
			return bad()
		}
		f.BoolVarP(t, s.flag, s.short, d, help)

	case *[]string:
		if s.env != "" {
			return fmt.Errorf(
				"setting '%s': environment variables only work with scalar settings",
				s.flag)
		}
		d, ok := orZero(def, []string(nil)).([]string)
		if !ok {
			return bad()
		}
		f.StringSliceVarP(t, s.flag, s.short, d, help)

	default:
		return fmt.Errorf("setting '%s' is of unsupported type %T", s.flag, s.target)
	}

	return nil
}

//
func orZero(def, zero interface{}) interface{} {
	if def == nil {
		return zero
	}
	return def
}

/*
	get reads the setting's value from Viper and stores it in the target. Flags
	already write to the target themselves, but values coming from environment
	variables only show up in Viper, so we always copy over.
*/
func (s *setting) get(v *viper.Viper) (interface{}, error) {

	var val interface{}
	missing := false

	switch t := s.target.(type) {
	case *string:
		*t = v.GetString(s.flag)
		val, missing = *t, *t == ""
	case *int:
		*t = v.GetInt(s.flag)
		val, missing = *t, *t == 0
	case *uint32:
		*t = v.GetUint32(s.flag)
		val, missing = *t, *t == 0
	case *bool:
		*t = v.GetBool(s.flag)
		val, missing = *t, !*t
	case *[]string:
		*t = v.GetStringSlice(s.flag)
		val, missing = *t, len(*t) == 0
	default:
		return nil, fmt.Errorf("setting '%s' is of unsupported type %T", s.flag, s.target)
	}

	if v.IsSet(s.flag) {
		log.Tracef("setting %s: '%v'", s.flag, val)
	} else {
		log.Tracef("setting %s: '%v' (default)", s.flag, val)
	}

	if s.required && missing {
		msg := fmt.Sprintf("you need to specify the --%s command line flag", s.flag)
		if s.env != "" {
			msg = fmt.Sprintf("%s or the %s environment variable", msg, s.env)
		}
		return nil, fmt.Errorf("%s", msg)
	}

	return val, nil
}
